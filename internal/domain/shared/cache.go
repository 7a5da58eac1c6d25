package shared

import (
	"context"
	"time"
)

// ResultCache stores serialized classification results keyed by the
// normalized operation fingerprint. Implementations must be safe for
// concurrent use.
type ResultCache interface {
	// Get returns the cached value for key, and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
