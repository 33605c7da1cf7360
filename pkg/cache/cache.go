// Package cache provides the content-addressed memo used by schema
// inspection and query execution. Keys are canonical JSON strings so the
// same logical request always maps to the same entry, independent of map
// ordering at the call site.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

// Cache is the contract the schema inspector and agent loop depend on.
// Implementations must allow concurrent Get/Set on distinct keys without
// blocking each other; concurrent Set to the same key is last-write-wins.
// There is no expiry policy: staleness is the caller's responsibility,
// handled through InvalidateTag.
type Cache interface {
	// Get returns the artifact stored under key, or apperrors.ErrCacheMiss.
	// A present-but-empty artifact is a hit, not a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores an artifact. tag optionally groups entries for later
	// invalidation; pass "" for untagged entries.
	Set(ctx context.Context, key string, value []byte, tag string) error

	// Contains reports whether key has an entry.
	Contains(ctx context.Context, key string) (bool, error)

	// InvalidateTag removes every entry stored with the given tag.
	InvalidateTag(ctx context.Context, tag string) error

	// Close flushes and releases the underlying storage handle.
	Close() error
}

// Key derives the deterministic cache key for a request discriminant.
// encoding/json sorts map keys, so logically identical discriminants encode
// identically regardless of construction order. The JSON string itself is
// the key, which keeps on-disk entries queryable by their parts.
func Key(discriminant map[string]any) (string, error) {
	data, err := json.Marshal(discriminant)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return string(data), nil
}

// GetJSON fetches and decodes a JSON-serialized artifact into v.
// Returns apperrors.ErrCacheMiss untouched so callers can branch on it.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode cached artifact: %w", err)
	}
	return nil
}

// SetJSON serializes v as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, tag string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return c.Set(ctx, key, data, tag)
}

// IsMiss reports whether err is the cache-miss signal.
func IsMiss(err error) bool { return apperrors.IsCacheMiss(err) }
