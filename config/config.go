// Package config stores and exports the loaded server configuration for
// server-side use and the public availability JSON subset.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/liamw1/oxibooru/util"
)

var (
	mu sync.RWMutex

	global *Config

	clientJSON []byte
	clientHash string
)

// Defaults are the documented fallback values applied before the
// config file is read, per spec.md §6's "All unspecified fields
// assume documented defaults."
var Defaults = Config{
	DataDir:             "data",
	DataURL:             "/data",
	SimilarityThreshold: 0.55,
	Thumbnails: ThumbnailConfig{
		GeneratedWidth:  300,
		GeneratedHeight: 300,
		CustomMaxWidth:  1000,
		CustomMaxHeight: 1000,
	},
	NameRegexes: NameRegexes{
		User: `^[a-zA-Z0-9_-]{1,32}$`,
		Tag:  `^\S+$`,
		Pool: `^\S+$`,
	},
	Argon2: Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
	},
	Public: Public{
		Name:         "oxibooru",
		DefaultRank:  "regular",
		EnableSafety: true,
	},
	Privileges: PrivilegeMatrix{
		"post_create":     "regular",
		"post_edit_tag":   "power",
		"post_edit_safety": "power",
		"post_edit_source": "regular",
		"post_delete":     "moderator",
		"post_view_featured": "anonymous",
		"post_merge":      "moderator",
		"tag_create":      "power",
		"tag_edit_name":   "power",
		"tag_edit_category": "power",
		"tag_merge":       "moderator",
		"tag_delete":      "moderator",
		"pool_create":     "power",
		"pool_edit":       "power",
		"pool_delete":     "moderator",
		"comment_create":  "regular",
		"comment_edit_own": "regular",
		"comment_edit_any": "moderator",
		"comment_delete_own": "regular",
		"comment_delete_any": "moderator",
		"user_create":     "anonymous",
		"user_edit_any_rank": "administrator",
		"user_edit_self_rank": "regular",
		"user_delete_self":    "regular",
		"user_delete_any":     "administrator",
	},
}

// Load reads the configuration file named by path (or "config.yaml" in
// the working directory if empty) with viper, falling back to
// Defaults for anything unset, then environment variable overrides
// prefixed OXIBOORU_ (e.g. OXIBOORU_DATABASE_URL). A missing config
// file is not an error: a fresh install runs entirely on defaults and
// environment overrides until a config file is added.
func Load(path string) error {
	v := viper.New()
	v.SetEnvPrefix("oxibooru")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaultsBuf, err := json.Marshal(Defaults)
	if err != nil {
		return util.WrapError("marshal config defaults", err)
	}
	var defaultsMap map[string]interface{}
	if err := json.Unmarshal(defaultsBuf, &defaultsMap); err != nil {
		return util.WrapError("unmarshal config defaults", err)
	}
	for k, val := range defaultsMap {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return util.WrapError("read config file", err)
			}
		}
	}

	c := Defaults
	if err := v.Unmarshal(&c); err != nil {
		return util.WrapError("decode config", err)
	}
	return Set(c)
}

// Get returns the currently loaded configuration. Callers must not
// modify the returned struct.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Set installs c as the current configuration and regenerates the
// public client JSON and its hash, so clients can detect a live
// reload.
func Set(c Config) error {
	client, err := json.Marshal(c.Public)
	if err != nil {
		return fmt.Errorf("marshal public config: %w", err)
	}
	hash := util.HashBuffer(client)

	mu.Lock()
	global = &c
	clientJSON = client
	clientHash = hash
	mu.Unlock()
	return nil
}

// GetClient returns the public-availability configuration JSON and its
// hash, used by clients to detect when they need to refetch.
func GetClient() ([]byte, string) {
	mu.RLock()
	defer mu.RUnlock()
	return clientJSON, clientHash
}

// RankFor looks up the minimum rank required for a privilege name. An
// unrecognised name resolves to administrator, per spec.md §4.H's
// fail-safe rule.
func (c Config) RankFor(privilege string) string {
	if r, ok := c.Privileges[privilege]; ok {
		return r
	}
	return "administrator"
}

// Clear resets package state. Only used in tests.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	c := Defaults
	global = &c
	clientJSON = nil
	clientHash = ""
}
