package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billyvinning/langchain-mcts/internal/testutil"
	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

func TestCachedOracleScore(t *testing.T) {
	ctx := context.Background()
	stub := &testutil.StubOracle{
		ScoreFn: func(call int, content, problem string) (float64, error) {
			return 42, nil
		},
	}

	oracle := NewCachedOracle(stub, NewMemoryCache(Config{}), 0)

	score, err := oracle.Score(ctx, "candidate", "problem")
	require.NoError(t, err)
	assert.InDelta(t, 42, score, 1e-9)
	assert.Equal(t, 1, stub.ScoreCalls())

	// Second call is a hit; the provider is not consulted again.
	score, err = oracle.Score(ctx, "candidate", "problem")
	require.NoError(t, err)
	assert.InDelta(t, 42, score, 1e-9)
	assert.Equal(t, 1, stub.ScoreCalls())

	// A different candidate misses.
	_, err = oracle.Score(ctx, "other candidate", "problem")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.ScoreCalls())
}

func TestCachedOracleScoreErrorNotCached(t *testing.T) {
	ctx := context.Background()
	stub := &testutil.StubOracle{
		ScoreFn: func(call int, content, problem string) (float64, error) {
			if call == 1 {
				return 0, errors.New(errors.OracleUnavailable, "down")
			}
			return 7, nil
		},
	}

	oracle := NewCachedOracle(stub, NewMemoryCache(Config{}), 0)

	_, err := oracle.Score(ctx, "candidate", "problem")
	require.Error(t, err)

	score, err := oracle.Score(ctx, "candidate", "problem")
	require.NoError(t, err)
	assert.InDelta(t, 7, score, 1e-9)
	assert.Equal(t, 2, stub.ScoreCalls())
}

func TestCachedOracleGeneratePassesThrough(t *testing.T) {
	ctx := context.Background()
	stub := &testutil.StubOracle{
		GenerateFn: func(call int, trajectory []string) (*core.Completion, error) {
			return &core.Completion{Content: "fresh each time"}, nil
		},
	}

	oracle := NewCachedOracle(stub, NewMemoryCache(Config{}), 0)

	for i := 0; i < 3; i++ {
		completion, err := oracle.Generate(ctx, []string{"problem"})
		require.NoError(t, err)
		assert.Equal(t, "fresh each time", completion.Content)
	}
	assert.Equal(t, 3, stub.GenerateCalls())

	assert.Equal(t, "stub", oracle.ProviderName())
	assert.Equal(t, "stub-model", oracle.ModelID())
}
