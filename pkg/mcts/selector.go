package mcts

import (
	"math"
)

// Policy selects the exploration formula applied during descent.
type Policy int

const (
	// PolicyUCT scores a child as Q + c*sqrt(ln(N_parent+1)/(N_child+eps)).
	PolicyUCT Policy = iota
	// PolicyUCB1 scores a child as Q + c*sqrt(2*ln(N_parent+1)/(N_child+eps)).
	PolicyUCB1
)

// epsilon avoids division by zero for barely-visited children in the
// exploration term. Unvisited children never reach the formula at all;
// they score +Inf.
const epsilon = 1e-6

// Selector implements the tree-descent policy: starting from a given
// node it repeatedly moves to the highest-scoring child until it finds
// a node with remaining expansion capacity.
type Selector struct {
	c         float64 // exploration constant
	maxBranch int     // maximum branching factor
	policy    Policy
}

// NewSelector creates a selector with the given exploration constant
// and branching limit.
func NewSelector(c float64, maxBranch int, policy Policy) *Selector {
	return &Selector{c: c, maxBranch: maxBranch, policy: policy}
}

// Select descends from the given node to one eligible for expansion: a
// node that is not terminal and still has room for another child. When
// the descent dead-ends on a node with no viable children, that node is
// returned as-is and the caller's expansion attempt surfaces the
// condition.
func (s *Selector) Select(tree *Tree, from *Node) *Node {
	node := from
	for {
		if s.expandable(tree, node) {
			return node
		}

		best := s.bestChild(tree, node, s.c)
		if best == nil {
			return node
		}
		node = best
	}
}

// expandable reports whether node can receive another child right now.
func (s *Selector) expandable(tree *Tree, node *Node) bool {
	if node.Terminal() {
		return false
	}
	count, err := tree.ChildCount(node.ID())
	if err != nil {
		return false
	}
	return count < s.maxBranch
}

// bestChild returns the child maximizing the exploration score, or nil
// when the node has no viable children. A child is viable only when
// its subtree still contains an expandable node: terminal leaves and
// fully saturated branches are skipped, nothing below them can ever
// grow. Ties break toward the earliest created child so the descent is
// deterministic.
func (s *Selector) bestChild(tree *Tree, node *Node, c float64) *Node {
	children, err := tree.Children(node.ID())
	if err != nil {
		return nil
	}

	parentVisits := node.Visits()

	var best *Node
	bestScore := math.Inf(-1)
	for _, child := range children {
		if !s.viable(tree, child) {
			continue
		}

		score := s.score(child, parentVisits, c)
		if score > bestScore {
			best = child
			bestScore = score
		}
	}
	return best
}

// viable reports whether the subtree rooted at node still contains an
// expandable node.
func (s *Selector) viable(tree *Tree, node *Node) bool {
	if s.expandable(tree, node) {
		return true
	}
	children, err := tree.Children(node.ID())
	if err != nil {
		return false
	}
	for _, child := range children {
		if s.viable(tree, child) {
			return true
		}
	}
	return false
}

// score computes the child's selection score. Unvisited children score
// +Inf and are therefore always preferred over visited siblings: every
// child gets visited once before any sibling is exploited twice.
func (s *Selector) score(child *Node, parentVisits int64, c float64) float64 {
	q, visited := child.MeanReward()
	if !visited {
		return math.Inf(1)
	}

	n := float64(child.Visits())
	logTerm := math.Log(float64(parentVisits) + 1)

	var exploration float64
	switch s.policy {
	case PolicyUCB1:
		exploration = math.Sqrt(2 * logTerm / (n + epsilon))
	default:
		exploration = math.Sqrt(logTerm / (n + epsilon))
	}

	return q + c*exploration
}

// BestChild returns the child of the given node maximizing the
// selection score at the given exploration constant. An exploration
// constant of zero yields the pure-exploitation readout.
func (s *Selector) BestChild(tree *Tree, node *Node, c float64) *Node {
	return s.bestChild(tree, node, c)
}
