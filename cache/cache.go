// Package cache wraps a Redis connection used to memoize the read-mostly
// lookups that would otherwise repeat the same round trip to Postgres on
// every request: the public configuration blob (SPEC_FULL.md's config
// ambient stack), tag/pool name-to-id resolution used by the query
// compiler (spec.md §4.E), and the coarse reverse-search candidate set
// (spec.md §4.C's two-tier reverse search).
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"github.com/liamw1/oxibooru/config"
)

// Client wraps a Redis connection in a thin struct rather than
// exposing *redis.Client directly, so callers go through typed helpers
// instead of hand-rolling key strings at every call site.
type Client struct {
	rdb *redis.Client
}

var errNotFound = errors.New("cache: key not found")

// IsNotFound reports whether err is the "no entry" case, so callers can
// fall through to the database without treating a cache miss as a
// hard failure.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// Open connects to Redis using the process configuration and verifies
// the connection with a Ping, failing fast the same way db.Open does.
func Open(conf *config.Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: conf.Redis.Addr,
		DB:   conf.Redis.DB,
	})
	if err := rdb.Ping().Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Clear flushes every key in the selected database. Used by tests to
// start from a known-empty cache and by the admin "clear cache"
// operation.
func (c *Client) Clear() error {
	return c.rdb.FlushDB().Err()
}

const (
	keyConfigJSON = "config:json"
	tagIDPrefix   = "tag:id:"
	poolIDPrefix  = "pool:id:"
)

// defaultTTL bounds how long a name-resolution entry survives without
// being refreshed, so a renamed or deleted tag/pool eventually falls
// out of cache even if no explicit invalidation fires.
const defaultTTL = 10 * time.Minute

// GetConfigJSON returns the cached public configuration JSON blob, if
// present.
func (c *Client) GetConfigJSON() ([]byte, error) {
	b, err := c.rdb.Get(keyConfigJSON).Bytes()
	if err == redis.Nil {
		return nil, errNotFound
	}
	return b, err
}

// SetConfigJSON caches the public configuration JSON blob with no
// expiration: it is explicitly invalidated by SetConfigJSON being
// called again whenever config.Set runs, not by a TTL.
func (c *Client) SetConfigJSON(b []byte) error {
	return c.rdb.Set(keyConfigJSON, b, 0).Err()
}

// InvalidateConfigJSON drops the cached config blob, forcing the next
// GetConfigJSON to miss.
func (c *Client) InvalidateConfigJSON() error {
	return c.rdb.Del(keyConfigJSON).Err()
}

// GetTagID resolves a tag name to its id via cache, for the query
// compiler's tag-name-predicate path (spec.md §4.E).
func (c *Client) GetTagID(name string) (int64, error) {
	return c.getID(tagIDPrefix + name)
}

// SetTagID caches a tag name -> id resolution.
func (c *Client) SetTagID(name string, id int64) error {
	return c.setID(tagIDPrefix+name, id)
}

// InvalidateTagID drops a cached tag name resolution, called whenever a
// tag is merged, renamed, or deleted.
func (c *Client) InvalidateTagID(name string) error {
	return c.rdb.Del(tagIDPrefix + name).Err()
}

// GetPoolID and SetPoolID/InvalidatePoolID mirror the tag-name helpers
// for pool-name resolution.
func (c *Client) GetPoolID(name string) (int64, error) {
	return c.getID(poolIDPrefix + name)
}

func (c *Client) SetPoolID(name string, id int64) error {
	return c.setID(poolIDPrefix+name, id)
}

func (c *Client) InvalidatePoolID(name string) error {
	return c.rdb.Del(poolIDPrefix + name).Err()
}

func (c *Client) getID(key string) (int64, error) {
	id, err := c.rdb.Get(key).Int64()
	if err == redis.Nil {
		return 0, errNotFound
	}
	return id, err
}

func (c *Client) setID(key string, id int64) error {
	return c.rdb.Set(key, id, defaultTTL).Err()
}

const candidatePrefix = "revsearch:"

// candidateTTL is short: reverse-search candidate sets are a
// within-request-burst optimization (repeated lookups against the same
// freshly-uploaded file during its dedup + tagging flow), not a
// long-lived index — the durable coarse index is post_signatures.words
// in Postgres.
const candidateTTL = time.Minute

// SetCandidates caches the coarse candidate post ids found for a given
// content checksum, keyed as a Redis set, so a retry or a follow-up
// call during the same upload flow skips the GIN-index query.
func (c *Client) SetCandidates(checksum [32]byte, postIDs []int64) error {
	key := candidatePrefix + string(checksum[:])
	members := make([]interface{}, len(postIDs))
	for i, id := range postIDs {
		members[i] = id
	}
	pipe := c.rdb.TxPipeline()
	pipe.Del(key)
	if len(members) > 0 {
		pipe.SAdd(key, members...)
	}
	pipe.Expire(key, candidateTTL)
	_, err := pipe.Exec()
	return err
}

// GetCandidates returns the cached candidate set for checksum, if any.
func (c *Client) GetCandidates(checksum [32]byte) ([]int64, error) {
	key := candidatePrefix + string(checksum[:])
	members, err := c.rdb.SMembers(key).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, errNotFound
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		var id int64
		if _, err := fmt.Sscan(m, &id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
