package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

// RedisCache implements Cache on a shared Redis instance, for deployments
// where several processes should reuse each other's inspection and query
// artifacts. Tags map to Redis sets of member keys.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds connection settings for the Redis cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"DATAQUAY_REDIS_ADDR"`
	Password string `yaml:"-" env:"DATAQUAY_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"DATAQUAY_REDIS_DB" env-default:"0"`
	// KeyPrefix namespaces entries; defaults to "dataquay:".
	KeyPrefix string `yaml:"key_prefix" env:"DATAQUAY_REDIS_KEY_PREFIX" env-default:"dataquay:"`
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg *RedisConfig) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "dataquay:"
	}
	return &RedisCache{client: client, keyPrefix: prefix}, nil
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) entryKey(key string) string { return c.keyPrefix + "entry:" + key }
func (c *RedisCache) tagKey(tag string) string   { return c.keyPrefix + "tag:" + tag }

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return value, nil
}

// Set implements Cache. Redis SET is last-write-wins by nature.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, tag string) error {
	if err := c.client.Set(ctx, c.entryKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if tag != "" {
		if err := c.client.SAdd(ctx, c.tagKey(tag), key).Err(); err != nil {
			return fmt.Errorf("record cache tag: %w", err)
		}
	}
	return nil
}

// Contains implements Cache.
func (c *RedisCache) Contains(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.entryKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("probe cache entry: %w", err)
	}
	return n > 0, nil
}

// InvalidateTag implements Cache.
func (c *RedisCache) InvalidateTag(ctx context.Context, tag string) error {
	keys, err := c.client.SMembers(ctx, c.tagKey(tag)).Result()
	if err != nil {
		return fmt.Errorf("list tagged entries: %w", err)
	}
	for _, key := range keys {
		if err := c.client.Del(ctx, c.entryKey(key)).Err(); err != nil {
			return fmt.Errorf("invalidate tagged entry: %w", err)
		}
	}
	if err := c.client.Del(ctx, c.tagKey(tag)).Err(); err != nil {
		return fmt.Errorf("drop tag set: %w", err)
	}
	return nil
}

// Close implements Cache.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
