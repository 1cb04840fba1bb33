package config

// Config stores the full server configuration, loaded once at process
// start (spec.md §6 "Configuration"). Kept immutable after Load except
// through Set, which also republishes the Public subset and its hash —
// keeping private server configuration and the public availability
// JSON as separate concerns.
type Config struct {
	Public

	// Secrets used in HMAC-style derivation of tokens and content
	// filenames (spec.md §4.I).
	PasswordSecret string `mapstructure:"password_secret"`
	ContentSecret  string `mapstructure:"content_secret"`

	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`

	DataDir string `mapstructure:"data_dir"`
	DataURL string `mapstructure:"data_url"`

	Thumbnails ThumbnailConfig `mapstructure:"thumbnails"`

	NameRegexes NameRegexes `mapstructure:"name_regexes"`

	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	DeleteSourceFiles   bool    `mapstructure:"delete_source_files"`

	Privileges PrivilegeMatrix `mapstructure:"privileges"`

	SMTP *SMTPConfig `mapstructure:"smtp"`

	Argon2 Argon2Params `mapstructure:"argon2"`
}

// DatabaseConfig names the Postgres connection the core runs against.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig names the optional cache backend (SPEC_FULL.md's domain
// stack entry for github.com/go-redis/redis). An empty Addr makes
// go-redis dial its default address (localhost:6379); when cache.Open
// cannot reach the server, serve logs a warning and runs without a
// cache.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

// ThumbnailConfig is the configured thumbnail dimensions of spec.md §6.
type ThumbnailConfig struct {
	GeneratedWidth  int `mapstructure:"generated_width"`
	GeneratedHeight int `mapstructure:"generated_height"`
	CustomMaxWidth  int `mapstructure:"custom_max_width"`
	CustomMaxHeight int `mapstructure:"custom_max_height"`
}

// NameRegexes are the configured validation patterns for user/tag/pool
// names (spec.md §6).
type NameRegexes struct {
	User string `mapstructure:"user"`
	Tag  string `mapstructure:"tag"`
	Pool string `mapstructure:"pool"`
}

// SMTPConfig carries optional mail credentials for password resets.
// SMTP delivery itself is an out-of-scope external collaborator
// (spec.md §1); this struct is the interface that collaborator reads.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Argon2Params are the configurable cost parameters for password
// hashing (spec.md §4.I).
type Argon2Params struct {
	Time    uint32 `mapstructure:"time"`
	Memory  uint32 `mapstructure:"memory_kib"`
	Threads uint8  `mapstructure:"threads"`
	KeyLen  uint32 `mapstructure:"key_len"`
}

// Public is the subset of configuration safe to expose to clients
// (spec.md §6 "public site info").
type Public struct {
	Name         string `mapstructure:"name" json:"name"`
	DefaultRank  string `mapstructure:"default_rank" json:"defaultRank"`
	EnableSafety bool   `mapstructure:"enable_safety" json:"enableSafety"`
}

// PrivilegeMatrix maps a privilege name (spec.md §4.H, e.g.
// "post_edit_tag") to the minimum rank required to exercise it.
type PrivilegeMatrix map[string]string
