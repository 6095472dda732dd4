package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/billyvinning/langchain-mcts/pkg/cache"
	"github.com/billyvinning/langchain-mcts/pkg/config"
	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/logging"
	"github.com/billyvinning/langchain-mcts/pkg/mcts"
	"github.com/billyvinning/langchain-mcts/pkg/oracles"
)

type runOptions struct {
	configPath  string
	problemFile string
	jsonOut     string
	dotOut      string
	timeout     time.Duration
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [problem]",
		Short: "Search for the best refined answer to a problem",
		Long: `Run reads the problem statement from its argument (or --problem-file),
searches for the best refined answer and prints the winning trajectory.
The tree can be dumped as JSON or Graphviz DOT for inspection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			problem, err := resolveProblem(args, opts.problemFile)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), problem, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.Flags().StringVar(&opts.problemFile, "problem-file", "", "read the problem statement from a file")
	cmd.Flags().StringVar(&opts.jsonOut, "json-out", "", "write the final tree as JSON to this path")
	cmd.Flags().StringVar(&opts.dotOut, "dot-out", "", "write the final tree as Graphviz DOT to this path")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overall deadline for the search (0 = none)")

	return cmd
}

func resolveProblem(args []string, problemFile string) (string, error) {
	if problemFile != "" {
		data, err := os.ReadFile(problemFile)
		if err != nil {
			return "", fmt.Errorf("failed to read problem file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return "", fmt.Errorf("a problem statement is required, as an argument or via --problem-file")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		// Without a file the defaults apply; the model still has to come
		// from somewhere, so require the file for now.
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(path)
}

func setupLogging(cfg config.LoggingConfig) (func(), error) {
	outputs := []logging.Output{logging.NewConsoleOutput(true)}

	var fileOut *logging.FileOutput
	if cfg.File != "" {
		var err error
		fileOut, err = logging.NewFileOutput(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		outputs = append(outputs, fileOut)
	}

	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(cfg.Level),
		Outputs:  outputs,
	}))

	cleanup := func() {
		if fileOut != nil {
			_ = fileOut.Close()
		}
	}
	return cleanup, nil
}

func buildOracle(ctx context.Context, cfg *config.Config) (core.Oracle, func(), error) {
	oracle, err := oracles.NewOracleFromConfig(ctx, cfg.Oracle.Provider, cfg.ProviderConfig(), core.ModelID(cfg.Oracle.ModelID))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if cfg.Cache.Backend != "" && cfg.Cache.Backend != "none" {
		store, err := cache.New(cache.Config{
			Backend: cfg.Cache.Backend,
			Path:    cfg.Cache.Path,
		})
		if err != nil {
			return nil, nil, err
		}
		oracle = cache.NewCachedOracle(oracle, store, 0)
		cleanup = func() { _ = store.Close() }
	}
	return oracle, cleanup, nil
}

func runSearch(ctx context.Context, problem string, opts *runOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	logCleanup, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCleanup()

	oracle, oracleCleanup, err := buildOracle(ctx, cfg)
	if err != nil {
		return err
	}
	defer oracleCleanup()

	controller, err := mcts.NewController(oracle, cfg.SearchConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := controller.Run(ctx, problem)
	if err != nil {
		return err
	}

	printResult(result, time.Since(started))
	return writeExports(controller.Tree(), opts)
}

func printResult(result *mcts.Result, elapsed time.Duration) {
	fmt.Printf("Termination: %s", result.Reason)
	if result.Degraded {
		fmt.Print(" (degraded)")
	}
	fmt.Printf("\nIterations:  %d\nReward:      %.3f (over %d visits)\nElapsed:     %s\n",
		result.Iterations, result.Reward, result.Visits, elapsed.Round(time.Millisecond))

	fmt.Println("\nTrajectory:")
	for i, step := range result.Trajectory {
		if i == 0 {
			fmt.Printf("  problem: %s\n", step)
			continue
		}
		fmt.Printf("  step %d:  %s\n", i, step)
	}

	if len(result.Trajectory) > 0 {
		fmt.Printf("\nAnswer:\n%s\n", result.Trajectory[len(result.Trajectory)-1])
	}
}

func writeExports(tree *mcts.Tree, opts *runOptions) error {
	if opts.jsonOut != "" {
		data, err := tree.ToJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.jsonOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write JSON export: %w", err)
		}
	}
	if opts.dotOut != "" {
		if err := os.WriteFile(opts.dotOut, []byte(tree.DOT()), 0o644); err != nil {
			return fmt.Errorf("failed to write DOT export: %w", err)
		}
	}
	return nil
}
