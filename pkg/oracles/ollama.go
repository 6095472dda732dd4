package oracles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/billyvinning/langchain-mcts/pkg/core"
	"github.com/billyvinning/langchain-mcts/pkg/errors"
)

// OllamaOracle implements core.Oracle against a local Ollama server.
type OllamaOracle struct {
	*core.BaseOracle
}

const defaultOllamaEndpoint = "http://localhost:11434"

// NewOllamaOracle creates an adapter for an Ollama-hosted model.
func NewOllamaOracle(endpoint, model string) (*OllamaOracle, error) {
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	if model == "" {
		return nil, errors.New(errors.InvalidConfiguration, "model name is required")
	}

	endpointCfg := &core.EndpointConfig{
		BaseURL: endpoint,
		Path:    "api/generate",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		TimeoutSec: 10 * 60,
	}

	return &OllamaOracle{
		BaseOracle: core.NewBaseOracle("ollama", core.ModelID(model), endpointCfg),
	}, nil
}

// NewOllamaOracleFromConfig creates an adapter from configuration.
func NewOllamaOracleFromConfig(ctx context.Context, config core.ProviderConfig, modelID core.ModelID) (*OllamaOracle, error) {
	modelName := strings.TrimPrefix(string(modelID), "ollama:")
	if modelName == "" {
		return nil, errors.New(errors.InvalidConfiguration, "model name is required")
	}

	endpoint := defaultOllamaEndpoint
	if config.BaseURL != "" {
		endpoint = config.BaseURL
	}

	oracle, err := NewOllamaOracle(endpoint, modelName)
	if err != nil {
		return nil, err
	}

	if config.Endpoint != nil {
		cfg := oracle.GetEndpointConfig()
		if config.Endpoint.BaseURL != "" {
			cfg.BaseURL = config.Endpoint.BaseURL
		}
		if config.Endpoint.TimeoutSec > 0 {
			cfg.TimeoutSec = config.Endpoint.TimeoutSec
		}
		for k, v := range config.Endpoint.Headers {
			cfg.Headers[k] = v
		}
	}
	if err := core.ValidateEndpointConfig(oracle.GetEndpointConfig()); err != nil {
		return nil, err
	}
	return oracle, nil
}

// OllamaProviderFactory creates OllamaOracle instances.
func OllamaProviderFactory(ctx context.Context, config core.ProviderConfig, modelID core.ModelID) (core.Oracle, error) {
	return NewOllamaOracleFromConfig(ctx, config, modelID)
}

type ollamaRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
}

// Generate implements core.Oracle.
func (o *OllamaOracle) Generate(ctx context.Context, trajectory []string, options ...core.GenerateOption) (*core.Completion, error) {
	if len(trajectory) == 0 {
		return nil, errors.New(errors.InvalidInput, "trajectory must contain the problem statement")
	}

	text, err := o.complete(ctx, buildRefinePrompt(trajectory), options)
	if err != nil {
		return nil, err
	}
	return parseCompletion(text)
}

// Score implements core.Oracle.
func (o *OllamaOracle) Score(ctx context.Context, content, problem string, options ...core.GenerateOption) (float64, error) {
	text, err := o.complete(ctx, buildScorePrompt(content, problem), options)
	if err != nil {
		return 0, err
	}
	return parseScore(text)
}

func (o *OllamaOracle) complete(ctx context.Context, prompt string, options []core.GenerateOption) (string, error) {
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	reqBody := ollamaRequest{
		Model:       o.ModelID(),
		Prompt:      prompt,
		Stream:      false,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to marshal request body"),
			errors.Fields{"model": o.ModelID()})
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.GetEndpointConfig().BaseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to create request"),
			errors.Fields{"model": o.ModelID()})
	}
	for key, value := range o.GetEndpointConfig().Headers {
		req.Header.Set(key, value)
	}

	resp, err := o.GetHTTPClient().Do(req)
	if err != nil {
		code := errors.OracleUnavailable
		if ctx.Err() != nil {
			code = errors.Timeout
		}
		return "", errors.WithFields(
			errors.Wrap(err, code, "failed to send request"),
			errors.Fields{"model": o.ModelID()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.OracleUnavailable, "failed to read response body"),
			errors.Fields{"model": o.ModelID()})
	}

	if resp.StatusCode != http.StatusOK {
		code := errors.InvalidInput
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			code = errors.OracleUnavailable
		}
		return "", errors.WithFields(
			errors.New(code, fmt.Sprintf("API request failed with status code %d", resp.StatusCode)),
			errors.Fields{
				"model":         o.ModelID(),
				"status_code":   resp.StatusCode,
				"response_body": string(body),
			})
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.MalformedCompletion, "failed to unmarshal response"),
			errors.Fields{"model": o.ModelID()})
	}
	return ollamaResp.Response, nil
}
