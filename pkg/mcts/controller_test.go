package mcts

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billyvinning/langchain-mcts/internal/testutil"
	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// goodBranchOracle emits one promising and one weak candidate under
// the root, then keeps refining whichever branch it is asked about.
// Scores are fixed: 0.9 for anything on the promising branch, 0.1
// otherwise.
func goodBranchOracle() *testutil.StubOracle {
	return &testutil.StubOracle{
		GenerateFn: func(call int, trajectory []string) (*core.Completion, error) {
			onGood := false
			for _, step := range trajectory {
				if strings.Contains(step, "good") {
					onGood = true
					break
				}
			}
			if onGood {
				return &core.Completion{Content: fmt.Sprintf("good refinement %d", call)}, nil
			}
			if call%2 == 1 {
				return &core.Completion{Content: fmt.Sprintf("good step %d", call)}, nil
			}
			return &core.Completion{Content: fmt.Sprintf("bad step %d", call)}, nil
		},
		ScoreFn: func(call int, content, problem string) (float64, error) {
			if strings.Contains(content, "good") {
				return 0.9, nil
			}
			return 0.1, nil
		},
	}
}

func controllerConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = 12
	cfg.MaxBranchingFactor = 2
	cfg.RewardThreshold = 0.95 // Unreachable with 0.9 rewards
	cfg.MaxRetries = 1
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

// TestSearchFindsGoodBranch verifies that with a sufficient budget the
// extracted answer comes from the consistently high-reward branch.
func TestSearchFindsGoodBranch(t *testing.T) {
	controller, err := NewController(goodBranchOracle(), controllerConfig())
	require.NoError(t, err)

	result, err := controller.Run(context.Background(), "hard question")
	require.NoError(t, err)

	assert.Equal(t, BudgetExhausted, result.Reason)
	assert.Equal(t, 12, result.Iterations)
	require.NotEmpty(t, result.Trajectory)
	assert.Equal(t, "hard question", result.Trajectory[0])
	assert.Contains(t, result.Trajectory[len(result.Trajectory)-1], "good")
	assert.InDelta(t, 0.9, result.Reward, 1e-9)
	assert.False(t, result.Degraded)
}

func TestSearchConverges(t *testing.T) {
	cfg := controllerConfig()
	cfg.RewardThreshold = 0.85 // Reachable on the first good candidate

	controller, err := NewController(goodBranchOracle(), cfg)
	require.NoError(t, err)

	result, err := controller.Run(context.Background(), "hard question")
	require.NoError(t, err)

	assert.Equal(t, Converged, result.Reason)
	assert.Less(t, result.Iterations, cfg.MaxIterations)
	assert.GreaterOrEqual(t, result.Reward, 0.85)
}

// TestZeroIterationBudget verifies an empty budget yields
// BudgetExhausted immediately with the root's trivial statistics.
func TestZeroIterationBudget(t *testing.T) {
	cfg := controllerConfig()
	cfg.MaxIterations = 0

	stub := &testutil.StubOracle{}
	controller, err := NewController(stub, cfg)
	require.NoError(t, err)

	result, err := controller.Run(context.Background(), "hard question")
	require.NoError(t, err)

	assert.Equal(t, BudgetExhausted, result.Reason)
	assert.Equal(t, 0, result.Iterations)
	assert.Equal(t, []string{"hard question"}, result.Trajectory)
	assert.Zero(t, result.Reward)
	assert.Zero(t, result.Visits)
	assert.Zero(t, stub.GenerateCalls())
}

func TestInvalidConfiguration(t *testing.T) {
	stub := &testutil.StubOracle{}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }},
		{"zero branching", func(c *Config) { c.MaxBranchingFactor = 0 }},
		{"threshold above one", func(c *Config) { c.RewardThreshold = 1.5 }},
		{"zero sample count", func(c *Config) { c.EvaluationSampleCount = 0 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewController(stub, cfg)
			require.Error(t, err)
			assert.Equal(t, errors.InvalidConfiguration, errors.Code(err))
		})
	}

	_, err := NewController(nil, DefaultConfig())
	require.Error(t, err)
}

// TestFailureBudgetDegradesGracefully verifies a run drowning in
// expansion failures still comes back with its best-so-far trajectory,
// flagged as degraded.
func TestFailureBudgetDegradesGracefully(t *testing.T) {
	broken := false
	stub := &testutil.StubOracle{
		GenerateFn: func(call int, trajectory []string) (*core.Completion, error) {
			if call == 1 {
				return &core.Completion{Content: "only answer"}, nil
			}
			broken = true
			return nil, errors.New(errors.MalformedCompletion, "oracle went sideways")
		},
		ScoreFn: func(call int, content, problem string) (float64, error) {
			return 0.4, nil
		},
	}

	cfg := controllerConfig()
	cfg.MaxIterations = 50
	cfg.MaxTotalFailures = 3
	cfg.MaxExpansionFailuresPerNode = 100 // Keep nodes alive so the run budget trips first

	controller, err := NewController(stub, cfg)
	require.NoError(t, err)

	result, err := controller.Run(context.Background(), "hard question")
	require.NoError(t, err)

	assert.True(t, broken)
	assert.Equal(t, Failed, result.Reason)
	assert.True(t, result.Degraded)
	assert.Equal(t, "only answer", result.Trajectory[len(result.Trajectory)-1])
	assert.InDelta(t, 0.4, result.Reward, 1e-9)
}

// TestBranchingLimitHoldsWithFinalChildren runs a search whose only
// candidate under a branching factor of 1 is a final answer below the
// reward threshold. Selection keeps landing on the saturated root,
// which must be written off rather than given extra children, and the
// run ends through the failure ceiling.
func TestBranchingLimitHoldsWithFinalChildren(t *testing.T) {
	stub := &testutil.StubOracle{
		GenerateFn: func(call int, trajectory []string) (*core.Completion, error) {
			return &core.Completion{Content: "an early final answer", IsFinal: true}, nil
		},
		ScoreFn: func(call int, content, problem string) (float64, error) {
			return 0.3, nil
		},
	}

	cfg := controllerConfig()
	cfg.MaxBranchingFactor = 1
	cfg.MaxTotalFailures = 2

	controller, err := NewController(stub, cfg)
	require.NoError(t, err)

	result, err := controller.Run(context.Background(), "hard question")
	require.NoError(t, err)

	assert.Equal(t, 1, stub.GenerateCalls())
	for _, node := range controller.Tree().Nodes() {
		count, err := controller.Tree().ChildCount(node.ID())
		require.NoError(t, err)
		assert.LessOrEqual(t, count, cfg.MaxBranchingFactor)
	}

	assert.Equal(t, Failed, result.Reason)
	assert.True(t, result.Degraded)
	assert.Equal(t, "an early final answer", result.Trajectory[len(result.Trajectory)-1])
	assert.InDelta(t, 0.3, result.Reward, 1e-9)
}

// TestCancellationBehavesLikeExhaustedBudget verifies external
// cancellation stops the loop and extraction still runs over whatever
// the tree contains.
func TestCancellationBehavesLikeExhaustedBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	iterations := 0
	stub := &testutil.StubOracle{
		GenerateFn: func(call int, trajectory []string) (*core.Completion, error) {
			iterations++
			if iterations >= 3 {
				cancel()
			}
			return &core.Completion{Content: fmt.Sprintf("candidate %d", call)}, nil
		},
		ScoreFn: func(call int, content, problem string) (float64, error) {
			return 0.5, nil
		},
	}

	cfg := controllerConfig()
	cfg.MaxIterations = 1000

	controller, err := NewController(stub, cfg)
	require.NoError(t, err)

	result, err := controller.Run(ctx, "hard question")
	require.NoError(t, err)

	assert.Equal(t, BudgetExhausted, result.Reason)
	assert.Less(t, result.Iterations, 1000)
	assert.NotEmpty(t, result.Trajectory)
}

// TestConcurrentSearchKeepsStatisticsExact runs many iterations in
// parallel against the shared tree and checks the instrumented
// expectation: every successful evaluation contributes exactly one
// observation through the root.
func TestConcurrentSearchKeepsStatisticsExact(t *testing.T) {
	stub := &testutil.StubOracle{
		GenerateFn: func(call int, trajectory []string) (*core.Completion, error) {
			return &core.Completion{Content: fmt.Sprintf("candidate %d", call)}, nil
		},
		ScoreFn: func(call int, content, problem string) (float64, error) {
			return 0.5, nil
		},
	}

	cfg := controllerConfig()
	cfg.MaxIterations = 100
	cfg.Concurrency = 8
	cfg.RewardThreshold = 1.0 // Unreachable at 0.5 rewards
	cfg.MaxBranchingFactor = 4

	controller, err := NewController(stub, cfg)
	require.NoError(t, err)

	result, err := controller.Run(context.Background(), "hard question")
	require.NoError(t, err)

	assert.Equal(t, BudgetExhausted, result.Reason)

	root := controller.Tree().Root()
	observations := int64(stub.ScoreCalls())
	assert.Equal(t, observations, root.Visits())
	assert.InDelta(t, 0.5*float64(observations), root.TotalReward(), 1e-6)

	// Per-node consistency: W == 0.5 * N everywhere.
	for _, node := range controller.Tree().Nodes() {
		assert.InDelta(t, 0.5*float64(node.Visits()), node.TotalReward(), 1e-6)
	}
}

func TestTerminationReasonString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "budget_exhausted", BudgetExhausted.String())
	assert.Equal(t, "failed", Failed.String())
}
