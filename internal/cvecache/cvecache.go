// Package cvecache is the on-disk cache for external CVE detail lookups.
//
// The cache is advisory: it is single-writer per process, readers
// tolerate a missing or torn database by treating every lookup as a
// miss, and last writer wins under concurrent runs.
package cvecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Cache stores raw CVE detail payloads keyed by id.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS cve_cache (
	id         TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL,
	payload    BLOB NOT NULL
);`

// Open opens (or creates) the cache database at path.
func Open(ctx context.Context, path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cvecache: unable to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cvecache: unable to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cvecache: unable to apply schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached payload for id if its age does not exceed ttl.
// A ttl of zero disables the cache entirely. Database errors are
// reported, but a plain miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, id string, ttl time.Duration) ([]byte, bool, error) {
	if ttl <= 0 {
		return nil, false, nil
	}
	var fetched int64
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at, payload FROM cve_cache WHERE id = ?`, id).
		Scan(&fetched, &payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cvecache: lookup: %w", err)
	}
	if time.Since(time.Unix(fetched, 0)) > ttl {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores the payload for id, replacing any prior entry.
func (c *Cache) Put(ctx context.Context, id string, payload []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cve_cache (id, fetched_at, payload) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET fetched_at = excluded.fetched_at, payload = excluded.payload`,
		id, time.Now().Unix(), payload)
	if err != nil {
		return fmt.Errorf("cvecache: store: %w", err)
	}
	return nil
}
