package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/dataquay/pkg/apperrors"
)

// SQLiteCache is the process-durable on-disk Cache implementation.
// Entries survive restarts; the storage format is a single table keyed by
// the canonical JSON key, with an optional tag column for grouped
// invalidation. Storing the JSON key verbatim keeps entries queryable,
// e.g. SELECT tag, count(*) FROM cache_entries GROUP BY tag.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (creating if needed) a cache database at path.
// Use ":memory:" for an ephemeral cache with the durable code path.
func NewSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	c := &SQLiteCache{db: db}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return c, nil
}

var _ Cache = (*SQLiteCache)(nil)

func (c *SQLiteCache) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		tag        TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_tag ON cache_entries(tag);
	`
	_, err := c.db.ExecContext(ctx, schema)
	return err
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry: %w", err)
	}
	return value, nil
}

// Set implements Cache. Upsert gives last-write-wins for concurrent writers.
func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte, tag string) error {
	var tagVal any
	if tag != "" {
		tagVal = tag
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, tag, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, tag = excluded.tag, created_at = excluded.created_at`,
		key, value, tagVal, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Contains implements Cache.
func (c *SQLiteCache) Contains(ctx context.Context, key string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM cache_entries WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe cache entry: %w", err)
	}
	return true, nil
}

// InvalidateTag implements Cache.
func (c *SQLiteCache) InvalidateTag(ctx context.Context, tag string) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("invalidate tag %q: %w", tag, err)
	}
	return nil
}

// Close implements Cache.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
