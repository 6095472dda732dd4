// Package mcts implements Monte-Carlo tree search over self-refined
// language-model trajectories. A tree of candidate answers is grown one
// refinement at a time: a UCT-style selector picks the most promising
// node, an expander asks the oracle to refine the trajectory ending
// there, an evaluator scores the new candidate, and the observation is
// backpropagated to the root. The controller drives that loop until a
// budget, convergence or failure condition fires and then extracts the
// best trajectory found.
package mcts

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// Node is one candidate reasoning state in the search tree. Identity,
// content, parent link and depth are write-once; only the visit
// statistics and the terminal flag mutate after creation. Statistics use
// per-node atomics so concurrent backpropagation never needs a tree-wide
// lock.
type Node struct {
	id       string
	parentID string // empty for the root
	content  string
	depth    int
	seq      uint64 // creation order, for deterministic tie-breaking

	visits   atomic.Int64
	reward   atomic.Uint64 // float64 bits of the running reward sum
	terminal atomic.Bool
	failures atomic.Int32 // failed expansion attempts against this node

	children []string // guarded by the owning tree's mutex
}

// ID returns the node's unique identifier.
func (n *Node) ID() string { return n.id }

// ParentID returns the identifier of the owning parent, or "" for the root.
func (n *Node) ParentID() string { return n.parentID }

// Content returns the trajectory's full reasoning/answer text at this
// node. It is self-contained, not a diff against the parent.
func (n *Node) Content() string { return n.content }

// Depth returns the distance from the root, fixed at creation.
func (n *Node) Depth() int { return n.depth }

// Visits returns the number of reward observations that passed through
// this node during backpropagation.
func (n *Node) Visits() int64 { return n.visits.Load() }

// TotalReward returns the running sum of rewards observed through this node.
func (n *Node) TotalReward() float64 {
	return math.Float64frombits(n.reward.Load())
}

// MeanReward returns the node's mean observed reward and whether the
// node has been visited at all. An unvisited node's mean is undefined;
// callers treat it as an optimistic prior.
func (n *Node) MeanReward() (float64, bool) {
	visits := n.visits.Load()
	if visits == 0 {
		return 0, false
	}
	return math.Float64frombits(n.reward.Load()) / float64(visits), true
}

// Terminal reports whether the node represents a finished answer. No
// further refinement is permitted from a terminal node.
func (n *Node) Terminal() bool { return n.terminal.Load() }

// MarkTerminal flags the node as finished.
func (n *Node) MarkTerminal() { n.terminal.Store(true) }

// RecordFailure counts one failed expansion attempt against this node
// and returns the running total.
func (n *Node) RecordFailure() int32 { return n.failures.Add(1) }

// FailureCount returns the number of failed expansion attempts recorded
// against this node.
func (n *Node) FailureCount() int32 { return n.failures.Load() }

// addObservation atomically folds one reward observation into the
// node's statistics. The reward sum uses a compare-and-swap loop since
// there is no atomic float64 add.
func (n *Node) addObservation(reward float64) {
	n.visits.Add(1)
	for {
		old := n.reward.Load()
		updated := math.Float64bits(math.Float64frombits(old) + reward)
		if n.reward.CompareAndSwap(old, updated) {
			return
		}
	}
}

// Tree owns all nodes of one search run, indexed by identifier. Nodes
// are only ever appended, never relinked or removed, so the tree is
// acyclic by construction and its lifetime equals one search
// invocation.
type Tree struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	order  []string // creation order
	rootID string
	seq    uint64
}

// NewTree creates an empty search tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*Node)}
}

// CreateRoot creates the root node holding the initial problem
// statement. It may be called at most once per tree.
func (t *Tree) CreateRoot(content string) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootID != "" {
		return nil, errors.New(errors.InvalidInput, "tree already has a root")
	}

	root := &Node{
		id:      uuid.NewString(),
		content: content,
		seq:     t.seq,
	}
	t.seq++
	t.nodes[root.id] = root
	t.order = append(t.order, root.id)
	t.rootID = root.id
	return root, nil
}

// AddChild appends a new child under parentID. Insertion order equals
// creation order; children are never removed.
func (t *Tree) AddChild(parentID, content string) (*Node, error) {
	return t.AddChildCapped(parentID, content, 0)
}

// AddChildCapped appends a new child like AddChild but refuses once the
// parent already holds limit children. A limit of zero or less means
// unbounded. The capacity check and the append happen under a single
// lock acquisition, so the limit holds under concurrent expansion.
func (t *Tree) AddChildCapped(parentID, content string, limit int) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.UnknownParent, "parent node does not exist"),
			errors.Fields{"parent_id": parentID})
	}
	if limit > 0 && len(parent.children) >= limit {
		return nil, errors.WithFields(
			errors.New(errors.NodeExhausted, "parent is at its branching limit"),
			errors.Fields{"parent_id": parentID, "children": len(parent.children), "limit": limit})
	}

	child := &Node{
		id:       uuid.NewString(),
		parentID: parentID,
		content:  content,
		depth:    parent.depth + 1,
		seq:      t.seq,
	}
	t.seq++
	t.nodes[child.id] = child
	t.order = append(t.order, child.id)
	parent.children = append(parent.children, child.id)
	return child, nil
}

// Get returns the node with the given identifier.
func (t *Tree) Get(nodeID string) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.NodeNotFound, "node does not exist"),
			errors.Fields{"node_id": nodeID})
	}
	return node, nil
}

// Root returns the root node, or nil if CreateRoot has not been called.
func (t *Tree) Root() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[t.rootID]
}

// Children returns the node's children in creation order.
func (t *Tree) Children(nodeID string) ([]*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.NodeNotFound, "node does not exist"),
			errors.Fields{"node_id": nodeID})
	}

	children := make([]*Node, len(node.children))
	for i, id := range node.children {
		children[i] = t.nodes[id]
	}
	return children, nil
}

// ChildCount returns how many children the node currently has.
func (t *Tree) ChildCount(nodeID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return 0, errors.WithFields(
			errors.New(errors.NodeNotFound, "node does not exist"),
			errors.Fields{"node_id": nodeID})
	}
	return len(node.children), nil
}

// PathToRoot returns the ordered path from the root to the given node,
// root first, target last. This is the trajectory the node represents.
func (t *Tree) PathToRoot(nodeID string) ([]*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.NodeNotFound, "node does not exist"),
			errors.Fields{"node_id": nodeID})
	}

	var reversed []*Node
	for node != nil {
		reversed = append(reversed, node)
		if node.parentID == "" {
			break
		}
		parent, ok := t.nodes[node.parentID]
		if !ok {
			return nil, errors.WithFields(
				errors.New(errors.UnknownParent, "parent missing from tree"),
				errors.Fields{"node_id": node.id, "parent_id": node.parentID})
		}
		node = parent
	}

	path := make([]*Node, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}
	return path, nil
}

// Len returns how many nodes the tree holds.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Nodes returns all nodes in creation order.
func (t *Tree) Nodes() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := make([]*Node, len(t.order))
	for i, id := range t.order {
		nodes[i] = t.nodes[id]
	}
	return nodes
}
