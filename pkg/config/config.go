// Package config loads and validates the YAML configuration driving a
// search run: which oracle provider to call, how the search loop behaves
// and where its artifacts go.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
	"github.com/billyvinning/langchain-mcts/pkg/mcts"
)

// Config is the complete configuration for a search run.
type Config struct {
	// Oracle selects the provider and model behind the search.
	Oracle OracleConfig `yaml:"oracle" validate:"required"`

	// Search contains the loop parameters.
	Search SearchConfig `yaml:"search,omitempty" validate:"omitempty"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging,omitempty" validate:"omitempty"`

	// Cache configuration for oracle call memoization.
	Cache CacheConfig `yaml:"cache,omitempty" validate:"omitempty"`
}

// OracleConfig describes a provider and how to reach it.
type OracleConfig struct {
	// Provider name (anthropic, ollama).
	Provider string `yaml:"provider" validate:"required,oneof=anthropic ollama"`

	// Model ID (e.g. claude-sonnet-4-5, ollama:llama3:8b).
	ModelID string `yaml:"model_id" validate:"required"`

	// API key for the provider. Falls back to the provider's environment
	// variable when empty.
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`

	// TimeoutSec is the per-request timeout in seconds.
	TimeoutSec int `yaml:"timeout_sec,omitempty" validate:"omitempty,min=1"`

	// Generation parameters forwarded to every oracle call.
	Generation GenerationConfig `yaml:"generation,omitempty"`
}

// GenerationConfig holds text generation parameters.
type GenerationConfig struct {
	MaxTokens   int     `yaml:"max_tokens,omitempty" validate:"omitempty,min=1"`
	Temperature float64 `yaml:"temperature,omitempty" validate:"omitempty,min=0,max=2"`
	TopP        float64 `yaml:"top_p,omitempty" validate:"omitempty,min=0,max=1"`
}

// SearchConfig holds the search loop parameters.
type SearchConfig struct {
	// ExplorationConstant is the c in the selection formula.
	ExplorationConstant float64 `yaml:"exploration_constant,omitempty" validate:"omitempty,min=0"`

	// Policy selects the exploration formula (uct, ucb1).
	Policy string `yaml:"policy,omitempty" validate:"omitempty,oneof=uct ucb1"`

	// Parsing seeds these from Default(), so min=1 knobs validate
	// without omitempty: an explicit zero is rejected, not defaulted.
	MaxIterations      int     `yaml:"max_iterations,omitempty" validate:"min=0"`
	MaxBranchingFactor int     `yaml:"max_branching_factor,omitempty" validate:"min=1"`
	RewardThreshold    float64 `yaml:"reward_threshold,omitempty" validate:"min=0,max=1"`

	// Failure budgets.
	MaxExpansionFailuresPerNode int `yaml:"max_expansion_failures_per_node,omitempty" validate:"min=1"`
	MaxTotalFailures            int `yaml:"max_total_failures,omitempty" validate:"min=0"`

	// EvaluationSampleCount averages this many scoring calls per candidate.
	EvaluationSampleCount int `yaml:"evaluation_sample_count,omitempty" validate:"min=1"`

	// Concurrency > 1 runs iterations in parallel.
	Concurrency int `yaml:"concurrency,omitempty" validate:"min=1"`

	// Retry behavior for transient oracle failures.
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig holds retry-specific configuration.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries,omitempty" validate:"omitempty,min=0"`
	InitialBackoff time.Duration `yaml:"initial_backoff,omitempty" validate:"omitempty,min=0"`
	MaxBackoff     time.Duration `yaml:"max_backoff,omitempty" validate:"omitempty,min=0"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error fatal"`

	// File receives a JSON-lines copy of the log when set.
	File string `yaml:"file,omitempty"`
}

// CacheConfig holds oracle response cache configuration.
type CacheConfig struct {
	// Backend (none, memory, sqlite).
	Backend string `yaml:"backend,omitempty" validate:"omitempty,oneof=none memory sqlite"`

	// Path of the SQLite database file. Required for the sqlite backend.
	Path string `yaml:"path,omitempty"`
}

// Load reads, fills in and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidConfiguration, "failed to read config file"),
			errors.Fields{"path": path})
	}
	return Parse(data)
}

// Parse unmarshals raw YAML over the defaults and validates the
// result. yaml.Unmarshal merges field-wise into the Default() base, so
// absent fields keep their defaults while explicit values survive,
// including meaningful zeros (exploration_constant: 0 is pure
// exploitation, max_iterations: 0 is an empty budget).
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "failed to parse config")
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchConfig converts the YAML section into the search core's Config.
func (c *Config) SearchConfig() mcts.Config {
	out := mcts.DefaultConfig()
	s := c.Search

	out.ExplorationConstant = s.ExplorationConstant
	out.MaxIterations = s.MaxIterations
	out.MaxBranchingFactor = s.MaxBranchingFactor
	out.RewardThreshold = s.RewardThreshold
	out.MaxExpansionFailuresPerNode = s.MaxExpansionFailuresPerNode
	out.MaxTotalFailures = s.MaxTotalFailures
	out.EvaluationSampleCount = s.EvaluationSampleCount
	out.Concurrency = s.Concurrency
	out.MaxRetries = s.Retry.MaxRetries
	out.InitialBackoff = s.Retry.InitialBackoff
	out.MaxBackoff = s.Retry.MaxBackoff

	if s.Policy == "ucb1" {
		out.Policy = mcts.PolicyUCB1
	} else {
		out.Policy = mcts.PolicyUCT
	}

	var genOpts []core.GenerateOption
	if g := c.Oracle.Generation; g.MaxTokens > 0 {
		genOpts = append(genOpts, core.WithMaxTokens(g.MaxTokens))
	}
	// Temperature zero means greedy sampling, so it is always forwarded.
	genOpts = append(genOpts, core.WithTemperature(c.Oracle.Generation.Temperature))
	if g := c.Oracle.Generation; g.TopP > 0 {
		genOpts = append(genOpts, core.WithTopP(g.TopP))
	}
	out.GenerateOptions = genOpts

	return out
}

// ProviderConfig converts the oracle section into the factory's input.
func (c *Config) ProviderConfig() core.ProviderConfig {
	out := core.ProviderConfig{
		APIKey:  c.Oracle.APIKey,
		BaseURL: c.Oracle.BaseURL,
	}
	if c.Oracle.BaseURL != "" || c.Oracle.TimeoutSec > 0 {
		out.Endpoint = &core.EndpointConfig{
			BaseURL:    c.Oracle.BaseURL,
			TimeoutSec: c.Oracle.TimeoutSec,
		}
	}
	return out
}
