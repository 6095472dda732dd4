// Package langchainmcts improves language model answers by searching a
// tree of self-refined candidates with Monte Carlo tree search.
//
// Each node in the tree holds one candidate answer. The search loop
// repeatedly selects a promising node by UCT, asks the oracle to refine
// the trajectory leading to it, grades the refinement and backpropagates
// the grade to every ancestor. The exploration term steers the budget
// toward branches that grade well without starving unvisited ones, so
// the final answer comes from the best-graded chain of refinements
// rather than from a single sample.
//
// Key Components:
//
//   - Core: The Oracle interface that abstracts the language model into
//     two operations, Generate (refine a trajectory) and Score (grade a
//     candidate), plus the shared provider plumbing.
//
//   - MCTS: The search core. Tree and Node with lock-free visit and
//     reward statistics, the UCT/UCB1 selector, the expander with retry
//     and failure budgets, the sampling evaluator, backpropagation and
//     the run controller with serial and concurrent modes.
//
//   - Oracles: Provider adapters for Anthropic's Messages API and
//     Ollama-hosted models, with a factory keyed by model ID.
//
//   - Cache: Score memoization backed by memory or SQLite, wrapped
//     around any oracle.
//
//   - Config: YAML configuration with validation for the oracle,
//     search, logging and cache sections.
//
// Example usage:
//
//	oracle, err := oracles.NewOracle(apiKey, core.ModelAnthropicSonnet)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	controller, err := mcts.NewController(oracle, mcts.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := controller.Run(ctx, "How many primes are below 100?")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Trajectory[len(result.Trajectory)-1])
package langchainmcts
