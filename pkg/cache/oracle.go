package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/logging"
)

// CachedOracle decorates an oracle with score memoization. Generate is
// forwarded untouched.
type CachedOracle struct {
	inner core.Oracle
	cache Cache
	ttl   time.Duration
}

// NewCachedOracle wraps an oracle with the given cache.
func NewCachedOracle(inner core.Oracle, cache Cache, ttl time.Duration) *CachedOracle {
	return &CachedOracle{inner: inner, cache: cache, ttl: ttl}
}

type scoreRecord struct {
	Score float64 `json:"score"`
}

// Generate implements core.Oracle by delegating to the wrapped oracle.
func (o *CachedOracle) Generate(ctx context.Context, trajectory []string, options ...core.GenerateOption) (*core.Completion, error) {
	return o.inner.Generate(ctx, trajectory, options...)
}

// Score implements core.Oracle. Cache failures are logged and the call
// falls through to the provider; a broken cache must never fail a search.
func (o *CachedOracle) Score(ctx context.Context, content, problem string, options ...core.GenerateOption) (float64, error) {
	logger := logging.GetLogger()
	key := ScoreKey(o.inner.ProviderName(), o.inner.ModelID(), content, problem)

	if data, found, err := o.cache.Get(ctx, key); err != nil {
		logger.Warn(ctx, "Score cache read failed: %v", err)
	} else if found {
		var record scoreRecord
		if err := json.Unmarshal(data, &record); err == nil {
			return record.Score, nil
		}
		logger.Warn(ctx, "Discarding undecodable cache entry: key=%s", key)
	}

	score, err := o.inner.Score(ctx, content, problem, options...)
	if err != nil {
		return 0, err
	}

	if data, err := json.Marshal(scoreRecord{Score: score}); err == nil {
		if err := o.cache.Set(ctx, key, data, o.ttl); err != nil {
			logger.Warn(ctx, "Score cache write failed: %v", err)
		}
	}
	return score, nil
}

func (o *CachedOracle) ProviderName() string { return o.inner.ProviderName() }
func (o *CachedOracle) ModelID() string      { return o.inner.ModelID() }
