package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// MockOracle is a testify mock implementation of core.Oracle.
type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Generate(ctx context.Context, trajectory []string, opts ...core.GenerateOption) (*core.Completion, error) {
	args := m.Called(ctx, trajectory, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if completion, ok := args.Get(0).(*core.Completion); ok {
		return completion, args.Error(1)
	}
	// Fall back to string conversion for simple cases
	return &core.Completion{Content: args.String(0)}, args.Error(1)
}

func (m *MockOracle) Score(ctx context.Context, content, problem string, opts ...core.GenerateOption) (float64, error) {
	args := m.Called(ctx, content, problem, opts)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockOracle) ProviderName() string { return "mock" }
func (m *MockOracle) ModelID() string      { return "mock-model" }

// StubOracle is a deterministic, programmable oracle for search tests.
// Generate and Score behavior is supplied as plain functions; call
// counts are tracked atomically so concurrent tests can assert on them.
type StubOracle struct {
	GenerateFn func(call int, trajectory []string) (*core.Completion, error)
	ScoreFn    func(call int, content, problem string) (float64, error)

	generateCalls atomic.Int64
	scoreCalls    atomic.Int64
}

func (s *StubOracle) Generate(ctx context.Context, trajectory []string, _ ...core.GenerateOption) (*core.Completion, error) {
	call := int(s.generateCalls.Add(1))
	if s.GenerateFn == nil {
		return &core.Completion{Content: "candidate"}, nil
	}
	return s.GenerateFn(call, trajectory)
}

func (s *StubOracle) Score(ctx context.Context, content, problem string, _ ...core.GenerateOption) (float64, error) {
	call := int(s.scoreCalls.Add(1))
	if s.ScoreFn == nil {
		return 0.5, nil
	}
	return s.ScoreFn(call, content, problem)
}

func (s *StubOracle) ProviderName() string { return "stub" }
func (s *StubOracle) ModelID() string      { return "stub-model" }

// GenerateCalls returns how many Generate calls the stub has served.
func (s *StubOracle) GenerateCalls() int { return int(s.generateCalls.Load()) }

// ScoreCalls returns how many Score calls the stub has served.
func (s *StubOracle) ScoreCalls() int { return int(s.scoreCalls.Load()) }

// FlakyOracle fails its first FailuresBeforeSuccess generate calls with
// a transient error, then delegates to the wrapped oracle.
type FlakyOracle struct {
	Inner                 core.Oracle
	FailuresBeforeSuccess int

	mu       sync.Mutex
	attempts int
}

func (f *FlakyOracle) Generate(ctx context.Context, trajectory []string, opts ...core.GenerateOption) (*core.Completion, error) {
	f.mu.Lock()
	f.attempts++
	failing := f.attempts <= f.FailuresBeforeSuccess
	f.mu.Unlock()

	if failing {
		return nil, errors.New(errors.OracleUnavailable, "transient failure injected")
	}
	return f.Inner.Generate(ctx, trajectory, opts...)
}

func (f *FlakyOracle) Score(ctx context.Context, content, problem string, opts ...core.GenerateOption) (float64, error) {
	return f.Inner.Score(ctx, content, problem, opts...)
}

func (f *FlakyOracle) ProviderName() string { return "flaky" }
func (f *FlakyOracle) ModelID() string      { return f.Inner.ModelID() }

// Attempts returns how many generate calls the flaky oracle has seen.
func (f *FlakyOracle) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}
