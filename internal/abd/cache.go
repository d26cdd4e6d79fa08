package abd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when key is absent.
var ErrCacheMiss = errors.New("abd: cache miss")

// cacheEntry is what a Cache stores keyed by register identity: the label
// the value was read at, so a stale cache entry is detectable even
// without contacting the quorum.
type cacheEntry struct {
	Label int             `json:"label"`
	Value json.RawMessage `json:"value"`
}

// Cache is a read-through store for the register's last known-good value,
// consulted by the fast, non-linearizable path behind GET /abd/read?consistency=cached
// (the ordinary Read always re-contacts the quorum per spec.md §6.2).
type Cache interface {
	Get(ctx context.Context) (label int, value json.RawMessage, err error)
	Set(ctx context.Context, label int, value json.RawMessage) error
}

// RedisCache is a Cache backed by Redis, grounded on the teacher's
// internal/infrastructure/cache.RedisCache (same client construction,
// same JSON-marshal-then-SET shape).
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache dials addr and verifies connectivity before returning.
func NewRedisCache(addr string, db int, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client, key: "abd:register", ttl: ttl, logger: logger.With("component", "abd_cache")}, nil
}

// Get returns the cached label/value, or ErrCacheMiss if absent.
func (c *RedisCache) Get(ctx context.Context) (int, json.RawMessage, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil, ErrCacheMiss
		}
		return 0, nil, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return 0, nil, err
	}
	return entry.Label, entry.Value, nil
}

// Set writes the current label/value through to Redis with the
// configured TTL.
func (c *RedisCache) Set(ctx context.Context, label int, value json.RawMessage) error {
	data, err := json.Marshal(cacheEntry{Label: label, Value: value})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write-through failed", "err", err)
		return err
	}
	return nil
}
