package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		c, err := New(Config{Backend: "memory"})
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &MemoryCache{}, c)
	})

	t.Run("default backend", func(t *testing.T) {
		c, err := New(Config{})
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &MemoryCache{}, c)
	})

	t.Run("sqlite backend", func(t *testing.T) {
		c, err := New(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")})
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &SQLiteCache{}, c)
	})

	t.Run("sqlite without path", func(t *testing.T) {
		_, err := New(Config{Backend: "sqlite"})
		require.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(Config{Backend: "redis"})
		require.Error(t, err)
	})
}

// runCacheContract exercises the behavior every backend must share.
func runCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "a", []byte("value-a"), 0))
	value, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value-a"), value)

	require.NoError(t, c.Set(ctx, "a", []byte("value-a2"), 0))
	value, found, err = c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value-a2"), value)

	require.NoError(t, c.Delete(ctx, "a"))
	_, found, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "b", []byte("value-b"), 0))
	require.NoError(t, c.Clear(ctx))
	_, found, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, found)

	// Expired entries behave as misses.
	require.NoError(t, c.Set(ctx, "short", []byte("gone soon"), time.Nanosecond))
	time.Sleep(10 * time.Millisecond)
	_, found, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)

	stats := c.Stats()
	assert.Greater(t, stats.Sets, int64(0))
	assert.Greater(t, stats.Misses, int64(0))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(Config{})
	defer c.Close()
	runCacheContract(t, c)
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	defer c.Close()
	runCacheContract(t, c)
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Config{MaxEntries: 2})
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// Touch "a" so "b" becomes the eviction candidate.
	_, _, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, found, _ := c.Get(ctx, "a")
	assert.True(t, found)
	_, found, _ = c.Get(ctx, "b")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "c")
	assert.True(t, found)
}

func TestSQLiteCachePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := NewSQLiteCache(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", []byte("persisted"), 0))
	require.NoError(t, first.Close())

	second, err := NewSQLiteCache(Config{Path: path})
	require.NoError(t, err)
	defer second.Close()

	value, found, err := second.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("persisted"), value)
}

func TestScoreKey(t *testing.T) {
	a := ScoreKey("anthropic", "claude-sonnet-4-5", "content", "problem")
	assert.Equal(t, a, ScoreKey("anthropic", "claude-sonnet-4-5", "content", "problem"))

	assert.NotEqual(t, a, ScoreKey("anthropic", "claude-sonnet-4-5", "content2", "problem"))
	assert.NotEqual(t, a, ScoreKey("anthropic", "claude-sonnet-4-5", "content", "problem2"))
	assert.NotEqual(t, a, ScoreKey("ollama", "claude-sonnet-4-5", "content", "problem"))

	// Field boundaries matter: moving a character between fields changes the key.
	assert.NotEqual(t,
		ScoreKey("anthropic", "m", "ab", "c"),
		ScoreKey("anthropic", "m", "a", "bc"))

	assert.Contains(t, ScoreKey("ollama", "llama3:8b", "x", "y"), "llama3_8b")
}
