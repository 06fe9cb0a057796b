package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/batchflow/types"
	"go.uber.org/zap"
)

// HTTPConfig configures an OpenAI-compatible HTTP backend.
type HTTPConfig struct {
	// Name is the client identifier used in logs and errors.
	Name string

	// BaseURL is the server base URL (e.g. "http://localhost:8080").
	BaseURL string

	// APIKey is sent as a Bearer token when non-empty. Local llama.cpp or
	// vLLM servers typically need none.
	APIKey string

	// Model is the model name placed in each request body.
	Model string

	// EndpointPath defaults to "/v1/completions".
	EndpointPath string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration
}

// HTTPClient dispatches prompts to an OpenAI-compatible completions server.
// It implements Client and is safe for concurrent use.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates an HTTP backend client.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/completions"
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns the configured client identifier.
func (c *HTTPClient) Name() string { return c.cfg.Name }

type completionRequest struct {
	Model             string   `json:"model,omitempty"`
	Prompt            string   `json:"prompt"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	Temperature       float32  `json:"temperature,omitempty"`
	TopP              float32  `json:"top_p,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	RepetitionPenalty float32  `json:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one completion request and returns the generated text.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, params types.InferenceParams) (string, error) {
	body := completionRequest{
		Model:             c.cfg.Model,
		Prompt:            prompt,
		MaxTokens:         params.MaxTokens,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		TopK:              params.TopK,
		RepetitionPenalty: params.RepetitionPenalty,
		Stop:              params.Stop,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.buildHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrBackendFailure, err.Error()).
			WithRetryable(true).
			WithClient(c.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", types.NewError(types.ErrBackendFailure,
			fmt.Sprintf("status=%d msg=%s", resp.StatusCode, msg)).
			WithRetryable(retryable).
			WithClient(c.Name())
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", types.NewError(types.ErrBackendFailure, err.Error()).
			WithRetryable(true).
			WithClient(c.Name())
	}
	if cr.Error != nil {
		return "", types.NewError(types.ErrBackendFailure, cr.Error.Message).
			WithClient(c.Name())
	}
	if len(cr.Choices) == 0 {
		return "", types.NewError(types.ErrBackendFailure, "empty choices in response").
			WithClient(c.Name())
	}

	return cr.Choices[0].Text, nil
}

func (c *HTTPClient) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.EndpointPath
}

func (c *HTTPClient) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// readErrorMessage extracts a best-effort error message from a response body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "unknown"
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(data))
}
