package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cclastrib/backend/internal/domain/shared"
)

// entry represents a stored result with expiration
type entry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryResultCache implements ResultCache using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryResultCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewInMemoryResultCache creates a new in-memory result cache. It
// starts a background goroutine to clean up expired entries. A
// maxEntries of zero means unbounded.
func NewInMemoryResultCache(maxEntries int) *InMemoryResultCache {
	store := &InMemoryResultCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		stopChan:   make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Get returns the cached value for a key, if present and not expired.
func (s *InMemoryResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a value under a key with a TTL. When the cache is full,
// an arbitrary expired-or-oldest eviction keeps it under the cap.
func (s *InMemoryResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		if _, exists := s.entries[key]; !exists {
			s.evictOneLocked()
		}
	}
	s.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Clear drops every cached result.
func (s *InMemoryResultCache) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (s *InMemoryResultCache) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (s *InMemoryResultCache) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictOneLocked removes an expired entry when one exists, or the
// entry closest to expiry otherwise. Caller holds the write lock.
func (s *InMemoryResultCache) evictOneLocked() {
	now := time.Now()
	var oldestKey string
	var oldestAt time.Time
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			return
		}
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryResultCache) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryResultCache) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Ensure InMemoryResultCache implements ResultCache
var _ shared.ResultCache = (*InMemoryResultCache)(nil)
