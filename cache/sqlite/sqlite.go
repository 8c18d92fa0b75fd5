// Package sqlite provides a relgraph.Cache stored in a SQLite table.
//
// Open uses the pure Go modernc.org/sqlite driver:
//
//	c, err := sqlite.Open(ctx, "file:relgraph.db?_pragma=busy_timeout(5000)",
//	    sqlite.WithSlowThreshold(50*time.Millisecond),
//	    sqlite.WithSlowQueryLog(nil),
//	)
//	store := snapshot.NewStore(c)
//
// New accepts any *sql.DB whose dialect understands the statements below.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/syssam/relgraph"
)

var _ relgraph.Cache = (*Cache)(nil)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

const (
	createTable = "CREATE TABLE IF NOT EXISTS relgraph_cache (key TEXT PRIMARY KEY, value BLOB, expires_at INTEGER)"
	selectValue = "SELECT value, expires_at FROM relgraph_cache WHERE key = ?"
	upsertValue = "INSERT INTO relgraph_cache (key, value, expires_at) VALUES (?, ?, ?) " +
		"ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at"
	deleteKey     = "DELETE FROM relgraph_cache WHERE key = ?"
	deleteExpired = "DELETE FROM relgraph_cache WHERE key = ? AND expires_at = ?"
	deletePrefix  = "DELETE FROM relgraph_cache WHERE substr(key, 1, ?) = ?"
	deleteAll     = "DELETE FROM relgraph_cache"
	purgeExpired  = "DELETE FROM relgraph_cache WHERE expires_at IS NOT NULL AND expires_at <= ?"
)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache stores values in the relgraph_cache table. Expiry times are unix
// nanoseconds; a NULL expiry never expires.
type Cache struct {
	db            *sql.DB
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
	now           func() time.Time
}

// Open opens the SQLite database at dsn and prepares the cache table.
func Open(ctx context.Context, dsn string, opts ...Option) (*Cache, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	c, err := New(ctx, db, opts...)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return c, nil
}

// New wraps db and creates the cache table if needed.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Cache, error) {
	c := &Cache{
		db:            db,
		stats:         &QueryStats{},
		slowThreshold: 100 * time.Millisecond,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("sqlite: create table: %w", err)
	}
	return c, nil
}

// QueryStats returns the statement statistics.
func (c *Cache) QueryStats() *QueryStats { return c.stats }

// DB returns the underlying database.
func (c *Cache) DB() *sql.DB { return c.db }

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the value under key, or nil if it is missing or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value   []byte
		expires sql.NullInt64
	)
	start := time.Now()
	err := c.db.QueryRowContext(ctx, selectValue, key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		c.record(ctx, selectValue, []any{key}, start, nil, true)
		return nil, nil
	}
	c.record(ctx, selectValue, []any{key}, start, err, true)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %q: %w", key, err)
	}
	if expires.Valid && c.now().UnixNano() >= expires.Int64 {
		// Only this entry is dropped; a concurrent Set with a new expiry wins.
		if _, err := c.exec(ctx, deleteExpired, key, expires.Int64); err != nil {
			return nil, fmt.Errorf("sqlite: expire %q: %w", key, err)
		}
		return nil, nil
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set stores value under key. A ttl of zero never expires.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: c.now().Add(ttl).UnixNano(), Valid: true}
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := c.exec(ctx, upsertValue, key, value, expires); err != nil {
		return fmt.Errorf("sqlite: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.exec(ctx, deleteKey, key); err != nil {
		return fmt.Errorf("sqlite: delete %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return c.Clear(ctx)
	}
	if _, err := c.exec(ctx, deletePrefix, utf8.RuneCountInString(prefix), prefix); err != nil {
		return fmt.Errorf("sqlite: delete prefix %q: %w", prefix, err)
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.exec(ctx, deleteAll); err != nil {
		return fmt.Errorf("sqlite: clear: %w", err)
	}
	return nil
}

// PurgeExpired removes expired entries and returns how many were removed.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.exec(ctx, purgeExpired, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: purge: %w", err)
	}
	return res.RowsAffected()
}

func (c *Cache) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, query, args...)
	c.record(ctx, query, args, start, err, false)
	return res, err
}
