package cache

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// SQLiteCache persists scored results across runs, so re-searching a
// problem with the same model can skip grades it has already paid for.
type SQLiteCache struct {
	db    *sql.DB
	cfg   Config
	stats Stats
}

// NewSQLiteCache opens or creates a SQLite-backed cache.
func NewSQLiteCache(cfg Config) (*SQLiteCache, error) {
	if cfg.Path == "" {
		return nil, errors.New(errors.InvalidConfiguration, "sqlite cache requires a database path")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "failed to open sqlite database")
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	cache := &SQLiteCache{db: db, cfg: cfg}
	if err := cache.initDB(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "failed to initialize cache schema")
	}

	// WAL keeps concurrent evaluation workers from serializing on writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "failed to enable WAL mode")
	}

	return cache, nil
}

func (c *SQLiteCache) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS score_cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_score_cache_expires_at ON score_cache(expires_at) WHERE expires_at > 0;
	`
	_, err := c.db.Exec(query)
	return err
}

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
	SELECT value FROM score_cache
	WHERE key = ? AND (expires_at = 0 OR expires_at > ?)
	`

	var value []byte
	err := c.db.QueryRowContext(ctx, query, key, time.Now().UnixNano()).Scan(&value)
	if err == sql.ErrNoRows {
		atomic.AddInt64(&c.stats.Misses, 1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.Unknown, "failed to read cache entry")
	}

	atomic.AddInt64(&c.stats.Hits, 1)
	return value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}

	query := `
	INSERT OR REPLACE INTO score_cache (key, value, expires_at, created_at)
	VALUES (?, ?, ?, ?)
	`
	if _, err := c.db.ExecContext(ctx, query, key, value, expiresAt, time.Now().UnixNano()); err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to write cache entry")
	}

	atomic.AddInt64(&c.stats.Sets, 1)
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM score_cache WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to delete cache entry")
	}
	return nil
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM score_cache`); err != nil {
		return errors.Wrap(err, errors.Unknown, "failed to clear cache")
	}
	return nil
}

func (c *SQLiteCache) Stats() Stats {
	var entries int64
	_ = c.db.QueryRow(`SELECT COUNT(*) FROM score_cache`).Scan(&entries)

	return Stats{
		Hits:    atomic.LoadInt64(&c.stats.Hits),
		Misses:  atomic.LoadInt64(&c.stats.Misses),
		Sets:    atomic.LoadInt64(&c.stats.Sets),
		Entries: entries,
	}
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
