package config

import (
	"time"
)

// Default returns the configuration every run starts from. The oracle
// section has no usable default model; callers must set one.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			Provider: "anthropic",
			Generation: GenerationConfig{
				MaxTokens:   8192,
				Temperature: 0.7,
			},
		},
		Search: SearchConfig{
			ExplorationConstant:         1.414,
			Policy:                      "uct",
			MaxIterations:               30,
			MaxBranchingFactor:          3,
			RewardThreshold:             0.9,
			MaxExpansionFailuresPerNode: 3,
			MaxTotalFailures:            10,
			EvaluationSampleCount:       1,
			Concurrency:                 1,
			Retry: RetryConfig{
				MaxRetries:     2,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     8 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Backend: "none",
		},
	}
}
