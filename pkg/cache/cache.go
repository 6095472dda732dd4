// Package cache memoizes oracle scoring calls. Grading the same
// candidate against the same problem is deterministic in intent, so a
// repeated evaluation can be served from storage instead of spending
// provider tokens. Refinement calls are never cached: sibling candidates
// must differ, and a memoized completion would collapse the search into
// one branch.
package cache

import (
	"context"
	"time"

	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// Cache defines the interface for storing scored results.
type Cache interface {
	// Get retrieves a cached value by key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given key and TTL. A zero TTL means no
	// expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a cached value by key.
	Delete(ctx context.Context, key string) error

	// Clear removes all cached values.
	Clear(ctx context.Context) error

	// Stats returns cache statistics.
	Stats() Stats

	// Close releases any resources held by the cache.
	Close() error
}

// Stats contains cache performance counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Entries int64 `json:"entries"`
}

// Config holds cache construction parameters.
type Config struct {
	// Backend selects the storage: "memory" or "sqlite".
	Backend string

	// Path to the SQLite database file. Required for sqlite.
	Path string

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL time.Duration

	// MaxEntries bounds the memory backend; oldest entries are evicted.
	// Zero means unlimited.
	MaxEntries int
}

// New creates a cache instance for the configured backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryCache(cfg), nil
	case "sqlite":
		return NewSQLiteCache(cfg)
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfiguration, "unknown cache backend"),
			errors.Fields{"backend": cfg.Backend})
	}
}
