package cache

import (
	"context"
	"fmt"
)

// Operation discriminants used in cache keys.
const (
	OpInspectSchema = "inspect_schema"
	OpQuery         = "query"
)

// QueryKey derives the cache key for a query-result memo on one source.
func QueryKey(source, statement string) (string, error) {
	return Key(map[string]any{
		"op":        OpQuery,
		"source":    source,
		"statement": statement,
	})
}

// GetQueryResult fetches a memoized query result into v, keyed by the
// source name and the exact statement text. Misses return ErrCacheMiss.
func GetQueryResult(ctx context.Context, c Cache, source, statement string, v any) error {
	key, err := QueryKey(source, statement)
	if err != nil {
		return fmt.Errorf("derive query key: %w", err)
	}
	return GetJSON(ctx, c, key, v)
}

// SetQueryResult memoizes a query result, tagged by source so a source-wide
// InvalidateTag drops its query memos together with its inspections.
func SetQueryResult(ctx context.Context, c Cache, source, statement string, v any) error {
	key, err := QueryKey(source, statement)
	if err != nil {
		return fmt.Errorf("derive query key: %w", err)
	}
	return SetJSON(ctx, c, key, v, source)
}
