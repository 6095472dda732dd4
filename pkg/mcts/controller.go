package mcts

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
	"github.com/billyvinning/langchain-mcts/pkg/logging"
)

// TerminationReason reports why a search run stopped.
type TerminationReason int

const (
	// Converged means the best mean reward reached the configured threshold.
	Converged TerminationReason = iota
	// BudgetExhausted means the iteration budget ran out, or the run was canceled.
	BudgetExhausted
	// Failed means cumulative expansion failures exceeded the configured ceiling.
	Failed
)

func (r TerminationReason) String() string {
	switch r {
	case Converged:
		return "converged"
	case BudgetExhausted:
		return "budget_exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds every knob of a search run.
type Config struct {
	// ExplorationConstant is the c in the UCT formula.
	ExplorationConstant float64
	// MaxIterations bounds the number of select/expand/evaluate/backpropagate rounds.
	MaxIterations int
	// MaxBranchingFactor bounds how many children a node may receive.
	MaxBranchingFactor int
	// RewardThreshold stops the search early once any node's mean reward reaches it.
	RewardThreshold float64
	// MaxExpansionFailuresPerNode writes a node off after this many failed expansions.
	MaxExpansionFailuresPerNode int
	// MaxTotalFailures fails the whole run once cumulative expansion failures exceed it.
	MaxTotalFailures int
	// EvaluationSampleCount averages this many independent scoring calls per candidate.
	EvaluationSampleCount int
	// Concurrency > 1 runs that many independent iterations at once against the shared tree.
	Concurrency int
	// Policy selects the exploration formula.
	Policy Policy
	// MaxRetries bounds retry attempts per oracle call on transient failure.
	MaxRetries int
	// InitialBackoff is the first retry delay; it doubles per attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Normalizer maps raw oracle scores into [0, 1]. Nil selects DefaultNormalizer.
	Normalizer Normalizer
	// GenerateOptions are forwarded to every oracle call.
	GenerateOptions []core.GenerateOption
}

// DefaultConfig returns the defaults the surrounding layer starts from.
func DefaultConfig() Config {
	return Config{
		ExplorationConstant:         1.414, // sqrt(2)
		MaxIterations:               30,
		MaxBranchingFactor:          3,
		RewardThreshold:             0.9,
		MaxExpansionFailuresPerNode: 3,
		MaxTotalFailures:            10,
		EvaluationSampleCount:       1,
		Concurrency:                 1,
		Policy:                      PolicyUCT,
		MaxRetries:                  2,
		InitialBackoff:              500 * time.Millisecond,
		MaxBackoff:                  8 * time.Second,
	}
}

// Validate fails fast, before the first iteration, on configuration
// that cannot drive a well-formed search.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 0:
		return errors.New(errors.InvalidConfiguration, "max iterations must be non-negative")
	case c.MaxBranchingFactor < 1:
		return errors.New(errors.InvalidConfiguration, "max branching factor must be at least 1")
	case c.ExplorationConstant < 0:
		return errors.New(errors.InvalidConfiguration, "exploration constant must be non-negative")
	case c.RewardThreshold < 0 || c.RewardThreshold > 1:
		return errors.New(errors.InvalidConfiguration, "reward threshold must be within [0, 1]")
	case c.MaxExpansionFailuresPerNode < 1:
		return errors.New(errors.InvalidConfiguration, "per-node failure budget must be at least 1")
	case c.MaxTotalFailures < 0:
		return errors.New(errors.InvalidConfiguration, "total failure budget must be non-negative")
	case c.EvaluationSampleCount < 1:
		return errors.New(errors.InvalidConfiguration, "evaluation sample count must be at least 1")
	case c.Concurrency < 1:
		return errors.New(errors.InvalidConfiguration, "concurrency must be at least 1")
	case c.MaxRetries < 0:
		return errors.New(errors.InvalidConfiguration, "max retries must be non-negative")
	}
	return nil
}

// Result is what a search run hands back to the caller. Whatever the
// termination reason, extraction runs over the tree as it stands: a
// failed run with at least one scored node still returns its best
// trajectory, flagged Degraded, rather than nothing.
type Result struct {
	// Trajectory is the ordered chain of contents from the problem
	// statement to the best candidate.
	Trajectory []string
	// Reward is the best node's mean observed reward.
	Reward float64
	// Visits is the best node's visit count.
	Visits int64
	// Reason reports why the run stopped.
	Reason TerminationReason
	// Degraded marks a result extracted from a failed run.
	Degraded bool
	// Iterations is how many full iterations completed.
	Iterations int
}

// Controller orchestrates the search loop against one tree and owns
// the termination policy.
type Controller struct {
	cfg       Config
	oracle    core.Oracle
	selector  *Selector
	expander  *Expander
	evaluator *Evaluator

	tree       *Tree
	problem    string
	iterations atomic.Int64
	failures   atomic.Int64
}

// NewController builds a controller for the given oracle, validating
// the configuration up front.
func NewController(oracle core.Oracle, cfg Config) (*Controller, error) {
	if oracle == nil {
		return nil, errors.New(errors.InvalidConfiguration, "oracle is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		cfg:       cfg,
		oracle:    oracle,
		selector:  NewSelector(cfg.ExplorationConstant, cfg.MaxBranchingFactor, cfg.Policy),
		expander:  NewExpander(oracle, cfg),
		evaluator: NewEvaluator(oracle, cfg),
	}, nil
}

// Tree exposes the search tree for inspection and export. It is only
// meaningful after Run has started.
func (c *Controller) Tree() *Tree {
	return c.tree
}

// Run searches for the best refined trajectory for the given problem
// statement. Cancellation through ctx takes effect between iterations
// at the latest and behaves like an exhausted budget: extraction still
// runs over whatever the tree contains.
func (c *Controller) Run(ctx context.Context, problem string) (*Result, error) {
	logger := logging.GetLogger()

	c.tree = NewTree()
	c.problem = problem
	c.iterations.Store(0)
	c.failures.Store(0)

	root, err := c.tree.CreateRoot(problem)
	if err != nil {
		return nil, err
	}

	var reason TerminationReason
	if c.cfg.MaxIterations == 0 {
		reason = BudgetExhausted
	} else if c.cfg.Concurrency > 1 {
		reason = c.runConcurrent(ctx, root)
	} else {
		reason = c.runSerial(ctx, root)
	}

	result := c.extract(reason)
	logger.Info(ctx, "Search finished: reason=%s iterations=%d nodes=%d best_reward=%.3f",
		reason, result.Iterations, c.tree.Len(), result.Reward)
	return result, nil
}

// runSerial is the canonical single-loop mode: each iteration's
// selection depends on the statistics written by the previous
// iteration's backpropagation.
func (c *Controller) runSerial(ctx context.Context, root *Node) TerminationReason {
	for {
		if ctx.Err() != nil {
			return BudgetExhausted
		}

		c.iterate(ctx, root)

		if reason, done := c.checkTermination(); done {
			return reason
		}
	}
}

// runConcurrent issues independent iterations against the shared tree.
// Selection may observe slightly stale statistics, which only affects
// exploration quality; the per-node atomics keep the statistics exact.
func (c *Controller) runConcurrent(ctx context.Context, root *Node) TerminationReason {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reason atomic.Int64
	reason.Store(-1)

	p := pool.New().WithMaxGoroutines(c.cfg.Concurrency)
	for i := 0; i < c.cfg.MaxIterations; i++ {
		p.Go(func() {
			if runCtx.Err() != nil {
				return
			}

			c.iterate(runCtx, root)

			if r, done := c.checkTermination(); done {
				reason.CompareAndSwap(-1, int64(r))
				cancel()
			}
		})
	}
	p.Wait()

	if r := reason.Load(); r >= 0 {
		return TerminationReason(r)
	}
	return BudgetExhausted
}

// iterate runs one select -> expand -> evaluate -> backpropagate round.
// Oracle flakiness and malformed output are recorded and the loop goes
// on; they never abort the run by themselves.
func (c *Controller) iterate(ctx context.Context, root *Node) {
	logger := logging.GetLogger()
	defer c.iterations.Add(1)

	node := c.selector.Select(c.tree, root)

	child, err := c.expander.Expand(ctx, c.tree, node)
	if err != nil {
		// A saturated node is a structural dead end, not an oracle
		// failure; the terminal mark it leaves behind steers later
		// selections away, so it does not burn the failure budget.
		if errors.Code(err) != errors.NodeExhausted {
			c.failures.Add(1)
		}
		return
	}

	reward, err := c.evaluator.Evaluate(ctx, child, c.problem)
	if err != nil {
		// The candidate exists but could not be scored; it stays in the
		// tree as an unvisited child and the failure counts toward the
		// run's budget.
		logger.Warn(ctx, "Evaluation failed, candidate left unscored: %v", err)
		c.failures.Add(1)
		return
	}

	if err := Backpropagate(c.tree, child, reward); err != nil {
		logger.Error(ctx, "Backpropagation failed: %v", err)
		return
	}

	logger.Debug(ctx, "Iteration %d: depth=%d reward=%.3f", c.iterations.Load()+1, child.Depth(), reward)
}

// checkTermination applies the termination policy after an iteration.
// First match wins: budget, then convergence, then the failure ceiling.
func (c *Controller) checkTermination() (TerminationReason, bool) {
	if int(c.iterations.Load()) >= c.cfg.MaxIterations {
		return BudgetExhausted, true
	}
	if best := c.bestVisited(); best != nil {
		if q, ok := best.MeanReward(); ok && q >= c.cfg.RewardThreshold {
			return Converged, true
		}
	}
	if int(c.failures.Load()) > c.cfg.MaxTotalFailures {
		return Failed, true
	}
	return 0, false
}

// bestVisited returns the node with the highest mean reward among all
// visited nodes; ties prefer the deeper (more refined) trajectory, then
// the earliest created node.
func (c *Controller) bestVisited() *Node {
	var best *Node
	var bestQ float64
	for _, node := range c.tree.Nodes() {
		q, ok := node.MeanReward()
		if !ok {
			continue
		}
		if best == nil || q > bestQ || (q == bestQ && node.Depth() > best.Depth()) {
			best = node
			bestQ = q
		}
	}
	return best
}

// extract reads the final answer out of the tree.
func (c *Controller) extract(reason TerminationReason) *Result {
	result := &Result{
		Reason:     reason,
		Degraded:   reason == Failed,
		Iterations: int(c.iterations.Load()),
	}

	best := c.bestVisited()
	if best == nil {
		// Nothing was ever scored; fall back to the bare problem
		// statement with the root's trivial statistics.
		best = c.tree.Root()
	}

	path, err := c.tree.PathToRoot(best.ID())
	if err != nil {
		// The tree is append-only and best came out of it, so this
		// cannot happen short of a core bug.
		logging.GetLogger().Error(context.Background(), "Answer extraction failed: %v", err)
		return result
	}

	result.Trajectory = make([]string, len(path))
	for i, n := range path {
		result.Trajectory[i] = n.Content()
	}
	if q, ok := best.MeanReward(); ok {
		result.Reward = q
	}
	result.Visits = best.Visits()
	return result
}
