package mcts

import (
	"context"
	"math"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
	"github.com/billyvinning/langchain-mcts/pkg/logging"
)

// Normalizer maps the oracle's raw scalar output into the closed unit
// interval. The mapping is policy, not mechanism: different oracles
// report on different scales, so the strategy is pluggable.
type Normalizer func(raw float64) float64

// DefaultNormalizer assumes the oracle scores on a 0-1, 0-10 or 0-100
// scale, divides accordingly, and clamps to [0, 1]. Non-finite input
// maps to zero: a scoring defect must never abort the run.
func DefaultNormalizer(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	switch {
	case raw > 1 && raw <= 10:
		raw /= 10
	case raw > 10:
		raw /= 100
	}
	return clamp(raw)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Evaluator obtains a reward in [0, 1] for a candidate's content via
// the oracle's scoring capability. It may average several independent
// scoring calls to reduce variance; the mean is recorded as a single
// observation so visit counts are never inflated with synthetic
// samples.
type Evaluator struct {
	oracle         core.Oracle
	samples        int
	normalize      Normalizer
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	genOpts        []core.GenerateOption
}

// NewEvaluator creates an evaluator around the given oracle.
func NewEvaluator(oracle core.Oracle, cfg Config) *Evaluator {
	normalize := cfg.Normalizer
	if normalize == nil {
		normalize = DefaultNormalizer
	}
	samples := cfg.EvaluationSampleCount
	if samples < 1 {
		samples = 1
	}
	return &Evaluator{
		oracle:         oracle,
		samples:        samples,
		normalize:      normalize,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		genOpts:        cfg.GenerateOptions,
	}
}

// Evaluate scores the node's content against the original problem
// statement. With multiple samples configured the scoring calls run
// concurrently and the mean over successful samples is returned; the
// call only errors when every sample fails.
func (ev *Evaluator) Evaluate(ctx context.Context, node *Node, problem string) (float64, error) {
	if ev.samples == 1 {
		return ev.scoreOnce(ctx, node.Content(), problem)
	}

	scores := make([]float64, ev.samples)
	errs := make([]error, ev.samples)

	p := pool.New().WithMaxGoroutines(ev.samples)
	for i := 0; i < ev.samples; i++ {
		i := i
		p.Go(func() {
			scores[i], errs[i] = ev.scoreOnce(ctx, node.Content(), problem)
		})
	}
	p.Wait()

	var sum float64
	var ok int
	var lastErr error
	for i := range scores {
		if errs[i] != nil {
			lastErr = errs[i]
			continue
		}
		sum += scores[i]
		ok++
	}
	if ok == 0 {
		return 0, lastErr
	}
	if lastErr != nil {
		logging.GetLogger().Warn(ctx, "Evaluation averaged %d/%d samples, last failure: %v",
			ok, ev.samples, lastErr)
	}
	return sum / float64(ok), nil
}

// scoreOnce performs one scoring round-trip with bounded exponential
// backoff on transient failures and normalizes the result. Out-of-range
// or unparseable scores clamp to the interval bounds rather than
// failing the search.
func (ev *Evaluator) scoreOnce(ctx context.Context, content, problem string) (float64, error) {
	var lastErr error
	for attempt := 0; attempt <= ev.maxRetries; attempt++ {
		if err := errors.CheckContext(ctx, "evaluation"); err != nil {
			return 0, err
		}

		raw, err := ev.oracle.Score(ctx, content, problem, ev.genOpts...)
		if err == nil {
			return ev.normalize(raw), nil
		}
		if errors.Code(err) == errors.ScoreParseFailed {
			// The oracle answered but the answer was not a usable
			// number. Clamp to the floor instead of aborting.
			return 0, nil
		}
		lastErr = err

		if !errors.IsTransient(err) || attempt == ev.maxRetries {
			break
		}

		backoff := time.Duration(float64(ev.initialBackoff) * math.Pow(2, float64(attempt)))
		if backoff > ev.maxBackoff {
			backoff = ev.maxBackoff
		}
		select {
		case <-ctx.Done():
			return 0, errors.Wrap(ctx.Err(), errors.Canceled, "context canceled during retry backoff")
		case <-time.After(backoff):
		}
	}

	if errors.IsTransient(lastErr) {
		return 0, errors.Wrap(lastErr, errors.OracleUnavailable, "scoring oracle unreachable after retries")
	}
	return 0, lastErr
}
