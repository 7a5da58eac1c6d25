package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cclastrib/backend/internal/domain/shared"
	"github.com/cclastrib/backend/internal/infrastructure/config"
)

const defaultKeyPrefix = "fiscal:classify:"

// RedisResultCache implements ResultCache using Redis. This is
// suitable for distributed deployments where multiple instances
// share classification results.
type RedisResultCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisResultCache creates a new Redis-based result cache
func NewRedisResultCache(cfg config.RedisConfig) (*RedisResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisResultCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisResultCacheWithClient creates a cache with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisResultCacheWithClient(client *redis.Client, keyPrefix string) *RedisResultCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisResultCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the cached value for a key, if present.
func (s *RedisResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}
	return value, true, nil
}

// Set stores a value under a key with a TTL.
func (s *RedisResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Clear drops every cached result under the prefix. SCAN keeps the
// server responsive on large keyspaces.
func (s *RedisResultCache) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to clear cached results: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached results: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisResultCache) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisResultCache) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisResultCache implements ResultCache
var _ shared.ResultCache = (*RedisResultCache)(nil)
