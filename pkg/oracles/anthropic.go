package oracles

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
	"github.com/billyvinning/langchain-mcts/pkg/logging"
)

// AnthropicOracle implements core.Oracle against Anthropic's Messages API.
type AnthropicOracle struct {
	client *anthropic.Client
	*core.BaseOracle
}

// Model name compatibility layer for older configuration files.
var anthropicModelAliases = map[string]anthropic.Model{
	"claude-3-opus-20240229":     anthropic.ModelClaudeOpus4_1_20250805,
	"claude-3-sonnet-20240229":   anthropic.ModelClaudeSonnet4_5_20250929,
	"claude-3-haiku-20240307":    anthropic.ModelClaude_3_Haiku_20240307,
	"claude-3.5-sonnet-20241022": anthropic.ModelClaudeSonnet4_5_20250929,
	"claude-3-opus":              anthropic.ModelClaudeOpus4_1_20250805,
	"claude-3-sonnet":            anthropic.ModelClaudeSonnet4_5_20250929,
	"claude-3-haiku":             anthropic.ModelClaude_3_Haiku_20240307,
}

func normalizeAnthropicModel(name string) anthropic.Model {
	if normalized, ok := anthropicModelAliases[name]; ok {
		return normalized
	}
	// Unknown names pass through, which lets new models work without a release.
	return anthropic.Model(name)
}

func isValidAnthropicModel(model string) bool {
	validPrefixes := []string{
		"claude-3",
		"claude-4",
		"claude-haiku",
		"claude-sonnet",
		"claude-opus",
	}
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// NewAnthropicOracle creates an adapter for the given API key and model.
func NewAnthropicOracle(apiKey string, model anthropic.Model) (*AnthropicOracle, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicOracle{
		client:     &client,
		BaseOracle: core.NewBaseOracle("anthropic", core.ModelID(model), nil),
	}, nil
}

// NewAnthropicOracleFromConfig creates an adapter from configuration,
// falling back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicOracleFromConfig(ctx context.Context, config core.ProviderConfig, modelID core.ModelID) (*AnthropicOracle, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New(errors.InvalidConfiguration, "API key is required")
	}

	normalized := normalizeAnthropicModel(string(modelID))
	if !isValidAnthropicModel(string(normalized)) {
		return nil, errors.WithFields(
			errors.New(errors.InvalidConfiguration, "unsupported Anthropic model"),
			errors.Fields{"model": modelID})
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.Endpoint != nil && config.Endpoint.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(config.Endpoint.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	return &AnthropicOracle{
		client:     &client,
		BaseOracle: core.NewBaseOracle("anthropic", modelID, config.Endpoint),
	}, nil
}

// AnthropicProviderFactory creates AnthropicOracle instances.
func AnthropicProviderFactory(ctx context.Context, config core.ProviderConfig, modelID core.ModelID) (core.Oracle, error) {
	return NewAnthropicOracleFromConfig(ctx, config, modelID)
}

// Generate implements core.Oracle.
func (a *AnthropicOracle) Generate(ctx context.Context, trajectory []string, options ...core.GenerateOption) (*core.Completion, error) {
	if len(trajectory) == 0 {
		return nil, errors.New(errors.InvalidInput, "trajectory must contain the problem statement")
	}

	text, usage, err := a.complete(ctx, buildRefinePrompt(trajectory), options)
	if err != nil {
		return nil, err
	}

	completion, err := parseCompletion(text)
	if err != nil {
		return nil, err
	}
	completion.Usage = usage
	return completion, nil
}

// Score implements core.Oracle. The returned value is the model's raw
// 0 to 100 grade; normalization happens in the evaluator.
func (a *AnthropicOracle) Score(ctx context.Context, content, problem string, options ...core.GenerateOption) (float64, error) {
	text, _, err := a.complete(ctx, buildScorePrompt(content, problem), options)
	if err != nil {
		return 0, err
	}
	return parseScore(text)
}

func (a *AnthropicOracle) complete(ctx context.Context, prompt string, options []core.GenerateOption) (string, *core.TokenInfo, error) {
	logger := logging.GetLogger()
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	model := normalizeAnthropicModel(a.ModelID())

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	})
	if err != nil {
		return "", nil, a.mapError(ctx, err, string(model), opts.MaxTokens)
	}

	if message == nil || len(message.Content) == 0 {
		return "", nil, errors.New(errors.MalformedCompletion, "received empty content from Anthropic API")
	}

	var text string
	if block := message.Content[0]; block.Type == "text" {
		text = block.Text
	}

	usage := &core.TokenInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}

	logger.Debug(ctx, "Anthropic response: %d prompt tokens, %d completion tokens", message.Usage.InputTokens, message.Usage.OutputTokens)
	return text, usage, nil
}

// mapError classifies SDK failures. Rate limits and server errors are
// transient so the expander retries them; other API rejections are not.
func (a *AnthropicOracle) mapError(ctx context.Context, err error, model string, maxTokens int) error {
	logger := logging.GetLogger()

	code := errors.OracleUnavailable
	var apiErr *anthropic.Error
	if stderrors.As(err, &apiErr) {
		logger.Error(ctx, "Anthropic API error: status code %d", apiErr.StatusCode)
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			code = errors.OracleUnavailable
		case apiErr.StatusCode == http.StatusRequestTimeout:
			code = errors.Timeout
		default:
			code = errors.InvalidInput
		}
	} else if ctx.Err() != nil {
		code = errors.Timeout
	}

	return errors.WithFields(
		errors.Wrap(err, code, "anthropic request failed"),
		errors.Fields{
			"model":      model,
			"max_tokens": maxTokens,
		})
}
