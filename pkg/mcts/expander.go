package mcts

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
	"github.com/billyvinning/langchain-mcts/pkg/logging"
)

// Expander performs the self-refine step: given a selected node it
// submits the full trajectory ending there to the oracle and appends
// the refined candidate as a new child. Exactly one child is created
// per successful call.
type Expander struct {
	oracle          core.Oracle
	maxRetries      int           // attempts per generate call on transient failure
	initialBackoff  time.Duration // first retry delay, doubled per attempt
	maxBackoff      time.Duration // backoff ceiling
	maxNodeFailures int           // failed attempts before a node is written off
	maxBranch       int           // maximum children per node
	genOpts         []core.GenerateOption
}

// NewExpander creates an expander around the given oracle.
func NewExpander(oracle core.Oracle, cfg Config) *Expander {
	return &Expander{
		oracle:          oracle,
		maxRetries:      cfg.MaxRetries,
		initialBackoff:  cfg.InitialBackoff,
		maxBackoff:      cfg.MaxBackoff,
		maxNodeFailures: cfg.MaxExpansionFailuresPerNode,
		maxBranch:       cfg.MaxBranchingFactor,
		genOpts:         cfg.GenerateOptions,
	}
}

// Expand requests one refined candidate for the trajectory ending at
// node and appends it as a new child. On failure no child is created,
// the attempt is recorded against the node's failure budget, and once
// that budget is spent the node is marked terminal with a zero-reward
// observation so selection stops returning to it. A node already at
// the branching limit is a dead end: selection only lands on one when
// none of its children can grow, so it is marked terminal without an
// oracle call and without disturbing its subtree's statistics.
func (e *Expander) Expand(ctx context.Context, tree *Tree, node *Node) (*Node, error) {
	logger := logging.GetLogger()

	if node.Terminal() {
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "cannot expand a terminal node"),
			errors.Fields{"node_id": node.ID()})
	}

	count, err := tree.ChildCount(node.ID())
	if err != nil {
		return nil, err
	}
	if e.maxBranch > 0 && count >= e.maxBranch {
		node.MarkTerminal()
		logger.Debug(ctx, "Node at depth %d has no viable children left, marked terminal", node.Depth())
		return nil, errors.WithFields(
			errors.New(errors.NodeExhausted, "node has no remaining branching capacity"),
			errors.Fields{"node_id": node.ID(), "children": count, "limit": e.maxBranch})
	}

	path, err := tree.PathToRoot(node.ID())
	if err != nil {
		return nil, err
	}
	trajectory := make([]string, len(path))
	for i, n := range path {
		trajectory[i] = n.Content()
	}

	completion, err := e.generateWithRetry(ctx, trajectory)
	if err == nil && strings.TrimSpace(completion.Content) == "" {
		err = errors.New(errors.MalformedCompletion, "oracle returned empty trajectory content")
	}
	if err != nil {
		failures := node.RecordFailure()
		logger.Warn(ctx, "Expansion failed (attempt %d/%d on node): %v",
			failures, e.maxNodeFailures, err)

		if int(failures) >= e.maxNodeFailures {
			// Write the node off with a zero reward so its ancestors'
			// statistics reflect the dead end.
			node.MarkTerminal()
			if bpErr := Backpropagate(tree, node, 0.0); bpErr != nil {
				return nil, bpErr
			}
			logger.Warn(ctx, "Node exhausted its expansion failure budget, marked terminal")
		}
		return nil, err
	}

	child, err := tree.AddChildCapped(node.ID(), completion.Content, e.maxBranch)
	if err != nil {
		// A concurrent expansion may have taken the last child slot
		// while the oracle call was in flight.
		return nil, err
	}
	if completion.IsFinal {
		child.MarkTerminal()
	}

	logger.Debug(ctx, "Expanded node at depth %d (final=%v)", child.Depth(), completion.IsFinal)
	return child, nil
}

// generateWithRetry calls the oracle with bounded exponential backoff.
// Only transient failures are retried; a malformed completion is
// deterministic for a given request and fails immediately.
func (e *Expander) generateWithRetry(ctx context.Context, trajectory []string) (*core.Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := errors.CheckContext(ctx, "expansion"); err != nil {
			return nil, err
		}

		completion, err := e.oracle.Generate(ctx, trajectory, e.genOpts...)
		if err == nil {
			return completion, nil
		}
		lastErr = err

		if !errors.IsTransient(err) || attempt == e.maxRetries {
			break
		}

		backoff := time.Duration(float64(e.initialBackoff) * math.Pow(2, float64(attempt)))
		if backoff > e.maxBackoff {
			backoff = e.maxBackoff
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "context canceled during retry backoff")
		case <-time.After(backoff):
		}
	}

	if errors.IsTransient(lastErr) {
		return nil, errors.WithFields(
			errors.Wrap(lastErr, errors.OracleUnavailable, "oracle unreachable after retries"),
			errors.Fields{"attempts": e.maxRetries + 1})
	}
	return nil, lastErr
}
