// Package deepseek wraps the DeepSeek chat completion API. DeepSeek speaks
// the OpenAI-compatible wire format, so the client is a smaller sibling of
// the openai one covering text generation only.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"guidora/internal/config"
	"guidora/internal/gateway"
)

const (
	defaultBaseURL     = "https://api.deepseek.com/v1"
	defaultHTTPTimeout = 60 * time.Second
)

// Client talks to the DeepSeek chat completion API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	costPer1K  float64
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a DeepSeek client from provider configuration.
func NewClient(cfg config.Provider, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		costPer1K:  cfg.CostPer1K,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.model == "" {
		client.model = "deepseek-chat"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Name implements gateway.Provider.
func (c *Client) Name() string { return "deepseek" }

// EstimateCost approximates the call cost from the prompt length plus an
// expected completion of similar size.
func (c *Client) EstimateCost(req gateway.Request) float64 {
	words := len(strings.Fields(req.Prompt))
	tokens := (words + words/3) * 2
	return float64(tokens) / 1000 * c.costPer1K
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Invoke implements gateway.Provider.
func (c *Client) Invoke(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	var empty gateway.Result
	if req.Capability != gateway.CapabilityText {
		return empty, fmt.Errorf("deepseek: unsupported capability %s", req.Capability)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, errors.New("deepseek: prompt required")
	}
	if c.apiKey == "" {
		return empty, errors.New("deepseek: api key required")
	}

	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return empty, fmt.Errorf("deepseek: build url: %w", err)
	}
	encoded, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return empty, fmt.Errorf("deepseek: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("deepseek: request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("deepseek: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("deepseek: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		reqErr := fmt.Errorf("deepseek: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return empty, gateway.Transient(reqErr)
		}
		return empty, reqErr
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, fmt.Errorf("deepseek: decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return empty, errors.New("deepseek: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return empty, fmt.Errorf("deepseek: empty content (finish_reason=%q)", completion.Choices[0].FinishReason)
	}

	cost := float64(completion.Usage.TotalTokens) / 1000 * c.costPer1K
	return gateway.Result{Text: content, CostUSD: cost}, nil
}
