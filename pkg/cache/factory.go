package cache

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
)

// New builds the cache backend selected by the configuration.
func New(ctx context.Context, cfg *config.CacheConfig) (Cache, error) {
	switch cfg.Kind {
	case config.CacheKindMemory, "":
		return NewMemoryCache(), nil
	case config.CacheKindSQLite:
		return NewSQLiteCache(ctx, cfg.Path)
	case config.CacheKindRedis:
		return NewRedisCache(ctx, &RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, apperrors.NewConfigurationError("kind",
			fmt.Sprintf("unsupported cache kind %q", cfg.Kind))
	}
}
