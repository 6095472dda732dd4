package mcts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeSnapshot is the serialized form of a node, exposing its fields
// verbatim for debugging and inspection.
type NodeSnapshot struct {
	ID          string   `json:"id"`
	ParentID    string   `json:"parent_id,omitempty"`
	Children    []string `json:"children,omitempty"`
	Content     string   `json:"content"`
	Depth       int      `json:"depth"`
	Terminal    bool     `json:"terminal"`
	Visits      int64    `json:"visit_count"`
	TotalReward float64  `json:"total_reward"`
	MeanReward  float64  `json:"mean_reward"`
}

// Snapshot captures every node in creation order.
func (t *Tree) Snapshot() []NodeSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshots := make([]NodeSnapshot, len(t.order))
	for i, id := range t.order {
		node := t.nodes[id]

		children := make([]string, len(node.children))
		copy(children, node.children)

		var mean float64
		if q, ok := node.MeanReward(); ok {
			mean = q
		}

		snapshots[i] = NodeSnapshot{
			ID:          node.id,
			ParentID:    node.parentID,
			Children:    children,
			Content:     node.content,
			Depth:       node.depth,
			Terminal:    node.Terminal(),
			Visits:      node.Visits(),
			TotalReward: node.TotalReward(),
			MeanReward:  mean,
		}
	}
	return snapshots
}

// ToJSON serializes the whole tree for offline inspection.
func (t *Tree) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t.Snapshot(), "", "  ")
}

// DOT renders the tree as a Graphviz digraph. Node labels carry the
// visit statistics; content is truncated to keep the graph readable.
func (t *Tree) DOT() string {
	snapshots := t.Snapshot()

	var b strings.Builder
	b.WriteString("digraph search {\n")
	b.WriteString("  node [shape=box];\n")

	for _, s := range snapshots {
		label := fmt.Sprintf("depth %d\\nN=%d W=%.2f Q=%.3f", s.Depth, s.Visits, s.TotalReward, s.MeanReward)
		if s.Terminal {
			label += "\\nterminal"
		}
		if excerpt := truncate(s.Content, 40); excerpt != "" {
			label += "\\n" + escapeDOT(excerpt)
		}
		fmt.Fprintf(&b, "  %q [label=\"%s\"];\n", s.ID, label)
	}
	for _, s := range snapshots {
		for _, child := range s.Children {
			fmt.Fprintf(&b, "  %q -> %q;\n", s.ID, child)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// truncate shortens s to at most n runes, counting in runes so a cut
// never lands inside a multibyte sequence.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
