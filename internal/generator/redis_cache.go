package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tartampluch/go-congrats/internal/config"
)

const redisScanCount = 100

// RedisCache shares generation results between service instances.
// Values are JSON-encoded Results without expiry.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = config.DefaultCachePrefix
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// NewRedisCacheFromURL connects using a redis:// URL.
func NewRedisCacheFromURL(url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRedisURL, err)
	}
	return NewRedisCache(redis.NewClient(opts), prefix), nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCacheIO, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) Get(ctx context.Context, key CacheKey) (Result, bool, error) {
	data, err := c.rdb.Get(ctx, key.Format(c.prefix)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("%s: %w", config.ErrCacheIO, err)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, false, fmt.Errorf("%s: %w", config.ErrCacheDecode, err)
	}
	return r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key CacheKey, r Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrCacheEncode, err)
	}
	if err := c.rdb.Set(ctx, key.Format(c.prefix), data, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCacheIO, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, clientID int64) error {
	return c.deleteMatching(ctx, fmt.Sprintf("%s:%d:*", c.prefix, clientID))
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.deleteMatching(ctx, c.prefix+":*")
}

// deleteMatching uses SCAN so large keyspaces do not block the server.
func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCacheIO, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCacheIO, err)
	}
	return nil
}
