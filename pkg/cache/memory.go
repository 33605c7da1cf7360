package cache

import (
	"context"
	"sync"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

// MemoryCache is the session-scoped in-memory Cache implementation.
// Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	tags    map[string]map[string]struct{} // tag -> keys
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string][]byte),
		tags:    make(map[string]map[string]struct{}),
	}
}

var _ Cache = (*MemoryCache)(nil)

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.entries[key]
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	// Copy so callers can't mutate the stored artifact.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set implements Cache. Last write wins.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, tag string) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = stored
	if tag != "" {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Contains implements Cache.
func (c *MemoryCache) Contains(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[key]
	return ok, nil
}

// InvalidateTag implements Cache.
func (c *MemoryCache) InvalidateTag(_ context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.tags[tag] {
		delete(c.entries, key)
	}
	delete(c.tags, tag)
	return nil
}

// Close implements Cache. Dropping the maps is enough.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]byte)
	c.tags = make(map[string]map[string]struct{})
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
