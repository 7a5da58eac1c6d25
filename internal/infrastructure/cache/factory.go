package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cclastrib/backend/internal/domain/shared"
	"github.com/cclastrib/backend/internal/infrastructure/config"
)

// ResultCacheFactory creates result caches based on configuration
type ResultCacheFactory struct {
	cacheConfig           config.CacheConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ResultCacheFactoryOption is a functional option for configuring the factory
type ResultCacheFactoryOption func(*ResultCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ResultCacheFactoryOption {
	return func(f *ResultCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory
// cache when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) ResultCacheFactoryOption {
	return func(f *ResultCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewResultCacheFactory creates a new factory
func NewResultCacheFactory(cacheCfg config.CacheConfig, redisCfg config.RedisConfig, opts ...ResultCacheFactoryOption) *ResultCacheFactory {
	f := &ResultCacheFactory{
		cacheConfig:           cacheCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateStore creates a result cache per the configured backend. With
// the redis backend it tries Redis first and falls back to in-memory
// when allowed.
func (f *ResultCacheFactory) CreateStore() (shared.ResultCache, error) {
	if f.cacheConfig.Backend == "memory" {
		f.logger.Info("using in-memory result cache")
		return f.CreateInMemoryStore(), nil
	}

	store, err := NewRedisResultCache(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis result cache", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for result cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory result cache. "+
		"Instances will not share cached classifications.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}

// CreateInMemoryStore creates an in-memory result cache.
// This is suitable for single-instance deployments and testing.
func (f *ResultCacheFactory) CreateInMemoryStore() shared.ResultCache {
	return NewInMemoryResultCache(f.cacheConfig.MaxEntries)
}
