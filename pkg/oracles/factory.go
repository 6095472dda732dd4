package oracles

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// ProviderFactory builds an oracle adapter for one provider.
type ProviderFactory func(ctx context.Context, config core.ProviderConfig, modelID core.ModelID) (core.Oracle, error)

var providerFactories = map[string]ProviderFactory{
	"anthropic": AnthropicProviderFactory,
	"ollama":    OllamaProviderFactory,
}

// NewOracle creates an oracle based on the provided model ID. Models
// prefixed "ollama:" route to a local Ollama server, everything else that
// looks like a Claude model routes to Anthropic.
func NewOracle(apiKey string, modelID core.ModelID) (core.Oracle, error) {
	switch {
	case strings.HasPrefix(string(modelID), "ollama:"):
		parts := strings.SplitN(string(modelID), ":", 2)
		if parts[1] == "" {
			return nil, errors.New(errors.InvalidConfiguration, "invalid Ollama model ID format, use 'ollama:<model_name>'")
		}
		return NewOllamaOracle(defaultOllamaEndpoint, parts[1])
	case isValidAnthropicModel(string(modelID)):
		return NewAnthropicOracle(apiKey, anthropic.Model(modelID))
	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfiguration, "unsupported model ID"),
			errors.Fields{"model": modelID})
	}
}

// NewOracleFromConfig creates an oracle through the registered factory for
// the named provider.
func NewOracleFromConfig(ctx context.Context, provider string, config core.ProviderConfig, modelID core.ModelID) (core.Oracle, error) {
	factory, ok := providerFactories[provider]
	if !ok {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfiguration, "unknown oracle provider"),
			errors.Fields{"provider": provider})
	}
	return factory(ctx, config, modelID)
}
