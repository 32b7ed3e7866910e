package dict

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"epicshelf/pkg/domain"
)

// CacheExpiry is how long a looked-up definition stays valid.
const CacheExpiry = 24 * time.Hour

const cachePrefix = "dict:"

// Cache stores definitions keyed by lowercased word.
type Cache interface {
	Get(ctx context.Context, word string) (domain.Definition, bool, error)
	Set(ctx context.Context, word string, def domain.Definition) error
	Clear(ctx context.Context) error
}

// cacheEntry carries its own write timestamp: the age is re-checked on
// every read so an entry that outlived CacheExpiry is pruned even when the
// backing TTL has drifted.
type cacheEntry struct {
	Data      domain.Definition `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

// RedisCache implements Cache on Redis with per-entry TTL.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCache builds a Redis-backed definition cache.
func NewRedisCache(addr, password string) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		now: time.Now,
	}
}

// Get returns the cached definition when present and younger than
// CacheExpiry. Expired entries are deleted on read.
func (c *RedisCache) Get(ctx context.Context, word string) (domain.Definition, bool, error) {
	raw, err := c.client.Get(ctx, cachePrefix+word).Result()
	if err == redis.Nil {
		return domain.Definition{}, false, nil
	}
	if err != nil {
		return domain.Definition{}, false, err
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		_ = c.client.Del(ctx, cachePrefix+word).Err()
		return domain.Definition{}, false, nil
	}
	if c.now().Sub(entry.Timestamp) >= CacheExpiry {
		_ = c.client.Del(ctx, cachePrefix+word).Err()
		return domain.Definition{}, false, nil
	}
	return entry.Data, true, nil
}

// Set overwrites the cached definition for word.
func (c *RedisCache) Set(ctx context.Context, word string, def domain.Definition) error {
	payload, err := json.Marshal(cacheEntry{Data: def, Timestamp: c.now()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cachePrefix+word, payload, CacheExpiry).Err()
}

// Clear removes every cached definition.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
