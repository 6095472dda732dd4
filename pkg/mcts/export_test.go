package mcts

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFields(t *testing.T) {
	tree, root := newTreeWithRoot(t)
	child, err := tree.AddChild(root.ID(), "a refined candidate")
	require.NoError(t, err)
	child.MarkTerminal()
	require.NoError(t, Backpropagate(tree, child, 0.8))

	snapshots := tree.Snapshot()
	require.Len(t, snapshots, 2)

	rootSnap, childSnap := snapshots[0], snapshots[1]

	assert.Equal(t, root.ID(), rootSnap.ID)
	assert.Empty(t, rootSnap.ParentID)
	assert.Equal(t, []string{child.ID()}, rootSnap.Children)
	assert.Equal(t, 0, rootSnap.Depth)
	assert.False(t, rootSnap.Terminal)
	assert.Equal(t, int64(1), rootSnap.Visits)
	assert.InDelta(t, 0.8, rootSnap.MeanReward, 1e-9)

	assert.Equal(t, root.ID(), childSnap.ParentID)
	assert.Empty(t, childSnap.Children)
	assert.Equal(t, "a refined candidate", childSnap.Content)
	assert.Equal(t, 1, childSnap.Depth)
	assert.True(t, childSnap.Terminal)
	assert.InDelta(t, 0.8, childSnap.TotalReward, 1e-9)
}

func TestToJSONRoundTrip(t *testing.T) {
	tree, root := newTreeWithRoot(t)
	_, err := tree.AddChild(root.ID(), "candidate")
	require.NoError(t, err)

	data, err := tree.ToJSON()
	require.NoError(t, err)

	var decoded []NodeSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, root.ID(), decoded[0].ID)
	assert.Equal(t, root.ID(), decoded[1].ParentID)
}

func TestDOTContainsNodesAndEdges(t *testing.T) {
	tree, root := newTreeWithRoot(t)
	a, err := tree.AddChild(root.ID(), "first candidate")
	require.NoError(t, err)
	b, err := tree.AddChild(root.ID(), "second candidate")
	require.NoError(t, err)

	dot := tree.DOT()

	assert.True(t, strings.HasPrefix(dot, "digraph search {"))
	assert.True(t, strings.HasSuffix(dot, "}\n"))
	for _, node := range []*Node{root, a, b} {
		assert.Contains(t, dot, fmt.Sprintf("%q", node.ID()))
	}
	assert.Contains(t, dot, fmt.Sprintf("%q -> %q;", root.ID(), a.ID()))
	assert.Contains(t, dot, fmt.Sprintf("%q -> %q;", root.ID(), b.ID()))
	assert.Contains(t, dot, "first candidate")
}

func TestDOTTruncatesLongContent(t *testing.T) {
	tree, _ := newTreeWithRoot(t)
	long := strings.Repeat("refinement ", 20)
	_, err := tree.AddChild(tree.Root().ID(), long)
	require.NoError(t, err)

	dot := tree.DOT()
	assert.Contains(t, dot, "...")
	assert.NotContains(t, dot, strings.Join(strings.Fields(long), " "))
}

// TestDOTTruncatesOnRuneBoundaries checks multibyte content survives
// truncation as valid UTF-8.
func TestDOTTruncatesOnRuneBoundaries(t *testing.T) {
	tree, _ := newTreeWithRoot(t)
	_, err := tree.AddChild(tree.Root().ID(), strings.Repeat("答", 50))
	require.NoError(t, err)

	dot := tree.DOT()
	assert.Contains(t, dot, "...")
	assert.True(t, utf8.ValidString(dot))
}
