package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "langchain-mcts",
	Short: "Search-and-refine answers with Monte Carlo tree search over an LLM",
	Long: `langchain-mcts improves an LLM answer by searching a tree of
self-refined candidates. Each node holds one candidate answer; the search
repeatedly selects a promising node, asks the model to refine it, grades
the refinement and feeds the grade back into the tree until the answer
converges or the budget runs out.`,
	Version: "0.1.0",
}

func main() {
	rootCmd.AddCommand(newRunCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
