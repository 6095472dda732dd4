package mcts

// Backpropagate walks from the given node to the root and folds one
// reward observation into every node on that path: visit count up by
// one, reward sum up by reward. No node outside the path is touched,
// and this is the only mutator of the visit statistics. Per-node
// atomics make concurrent backpropagation through shared ancestors
// safe.
func Backpropagate(tree *Tree, node *Node, reward float64) error {
	path, err := tree.PathToRoot(node.ID())
	if err != nil {
		return err
	}

	for _, n := range path {
		n.addObservation(reward)
	}
	return nil
}
