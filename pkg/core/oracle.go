package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is one refined candidate produced by the oracle. IsFinal is
// the oracle's explicit signal that the trajectory is complete and no
// further refinement should be requested from it.
type Completion struct {
	Content  string
	IsFinal  bool
	Usage    *TokenInfo
	Metadata map[string]interface{}
}

// Oracle is the capability interface the search core calls. It is
// deliberately small: one operation to produce a refined candidate from a
// trajectory's history, one to estimate a candidate's quality. Any
// concrete provider is an adapter implementing this interface, which
// keeps the search core provider-agnostic and trivially testable with
// stubs.
type Oracle interface {
	// Generate produces a refined/continued candidate given the full
	// root-to-node trajectory, ordered root first.
	Generate(ctx context.Context, trajectory []string, options ...GenerateOption) (*Completion, error)

	// Score produces a raw scalar quality estimate for a candidate.
	// The returned value is unnormalized; the evaluator owns mapping it
	// into [0, 1].
	Score(ctx context.Context, content, problem string, options ...GenerateOption) (float64, error)

	ProviderName() string
	ModelID() string
}

// GenerateOption represents an option for text generation.
type GenerateOption func(*GenerateOptions)

// GenerateOptions holds configuration for text generation.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// NewGenerateOptions creates a new GenerateOptions with default values.
func NewGenerateOptions() *GenerateOptions {
	return &GenerateOptions{
		MaxTokens:   8192, // Default max tokens
		Temperature: 0.7,  // Default temperature
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}

// WithTopP sets the nucleus sampling probability.
func WithTopP(p float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = p
	}
}

// WithStopSequences sets the stop sequences.
func WithStopSequences(sequences ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Stop = sequences
	}
}

// EndpointConfig describes where a provider adapter sends its requests.
type EndpointConfig struct {
	BaseURL    string            // Base API URL
	Path       string            // Specific endpoint path
	Headers    map[string]string // Common headers
	TimeoutSec int               // Request timeout in seconds
}

// ProviderConfig carries the provider-level settings the factory needs to
// construct an oracle adapter.
type ProviderConfig struct {
	APIKey   string
	BaseURL  string
	Endpoint *EndpointConfig
}

// BaseOracle provides the shared plumbing for oracle adapters: identity,
// endpoint configuration and a pooled HTTP client.
type BaseOracle struct {
	providerName string
	modelID      ModelID

	endpoint *EndpointConfig
	client   *http.Client
}

// ProviderName implements the Oracle interface.
func (b *BaseOracle) ProviderName() string {
	return b.providerName
}

// ModelID implements the Oracle interface.
func (b *BaseOracle) ModelID() string {
	return string(b.modelID)
}

// GetEndpointConfig returns the current endpoint configuration.
func (b *BaseOracle) GetEndpointConfig() *EndpointConfig {
	return b.endpoint
}

// GetHTTPClient returns the HTTP client.
func (b *BaseOracle) GetHTTPClient() *http.Client {
	return b.client
}

func NewBaseOracle(providerName string, modelID ModelID, endpoint *EndpointConfig) *BaseOracle {
	var timeout time.Duration
	if endpoint != nil && endpoint.TimeoutSec > 0 {
		timeout = time.Duration(endpoint.TimeoutSec) * time.Second
	} else {
		timeout = 30 * time.Second
	}

	return &BaseOracle{
		providerName: providerName,
		modelID:      modelID,
		endpoint:     endpoint,
		client:       &http.Client{Timeout: timeout},
	}
}

func ValidateEndpointConfig(cfg *EndpointConfig) error {
	if cfg == nil {
		return nil // Valid to have no endpoint config
	}

	if cfg.BaseURL == "" {
		return errors.New(errors.InvalidInput, "base URL required in endpoint configuration")
	}

	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 30 // Default timeout
	}

	return nil
}

// ModelID represents the available model IDs.
type ModelID string

const (
	// Anthropic models.
	ModelAnthropicHaiku  ModelID = ModelID(anthropic.ModelClaude_3_Haiku_20240307)
	ModelAnthropicSonnet ModelID = ModelID(anthropic.ModelClaudeSonnet4_5_20250929)
	ModelAnthropicOpus   ModelID = ModelID(anthropic.ModelClaudeOpus4_1_20250805)

	// Ollama models.
	ModelOllamaLlama3_8B   ModelID = "llama3:8b"
	ModelOllamaLlama3_1_8B ModelID = "llama3.1:8b"
	ModelOllamaMistral7B   ModelID = "mistral:7b"
	ModelOllamaQwen2_5_7B  ModelID = "qwen2.5:7b"
)

var ProviderModels = map[string][]ModelID{
	"anthropic": {
		ModelAnthropicSonnet, ModelAnthropicHaiku, ModelAnthropicOpus,
	},
	"ollama": {
		ModelOllamaLlama3_8B, ModelOllamaLlama3_1_8B, ModelOllamaMistral7B, ModelOllamaQwen2_5_7B,
	},
}
