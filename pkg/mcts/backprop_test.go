package mcts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackpropagatePath verifies that every node on the path from the
// target to the root receives exactly the new observation and that no
// node outside the path is touched.
func TestBackpropagatePath(t *testing.T) {
	tree := NewTree()
	root, _ := tree.CreateRoot("problem")
	a, _ := tree.AddChild(root.ID(), "a")
	b, _ := tree.AddChild(a.ID(), "b")
	sibling, _ := tree.AddChild(root.ID(), "sibling")

	require.NoError(t, Backpropagate(tree, b, 0.8))

	for _, node := range []*Node{root, a, b} {
		assert.Equal(t, int64(1), node.Visits())
		assert.InDelta(t, 0.8, node.TotalReward(), 1e-9)
	}
	assert.Equal(t, int64(0), sibling.Visits())
	assert.Zero(t, sibling.TotalReward())

	require.NoError(t, Backpropagate(tree, a, 0.4))

	assert.Equal(t, int64(2), root.Visits())
	assert.InDelta(t, 1.2, root.TotalReward(), 1e-9)
	assert.Equal(t, int64(2), a.Visits())
	assert.InDelta(t, 1.2, a.TotalReward(), 1e-9)
	assert.Equal(t, int64(1), b.Visits())
	assert.InDelta(t, 0.8, b.TotalReward(), 1e-9)

	q, ok := root.MeanReward()
	require.True(t, ok)
	assert.InDelta(t, 0.6, q, 1e-9)
}

// TestBackpropagateConcurrent stress-tests the atomicity of the visit
// statistics: concurrent observations through shared ancestors must
// never lose an increment or a reward contribution.
func TestBackpropagateConcurrent(t *testing.T) {
	tree := NewTree()
	root, _ := tree.CreateRoot("problem")

	leaves := make([]*Node, 8)
	for i := range leaves {
		mid, err := tree.AddChild(root.ID(), "mid")
		require.NoError(t, err)
		leaf, err := tree.AddChild(mid.ID(), "leaf")
		require.NoError(t, err)
		leaves[i] = leaf
	}

	const perLeaf = 200
	const reward = 0.25

	var wg sync.WaitGroup
	for _, leaf := range leaves {
		wg.Add(1)
		go func(leaf *Node) {
			defer wg.Done()
			for i := 0; i < perLeaf; i++ {
				if err := Backpropagate(tree, leaf, reward); err != nil {
					t.Error(err)
					return
				}
			}
		}(leaf)
	}
	wg.Wait()

	total := int64(len(leaves) * perLeaf)
	assert.Equal(t, total, root.Visits())
	assert.InDelta(t, float64(total)*reward, root.TotalReward(), 1e-6)

	for _, leaf := range leaves {
		assert.Equal(t, int64(perLeaf), leaf.Visits())
		assert.InDelta(t, perLeaf*reward, leaf.TotalReward(), 1e-6)
	}
}
