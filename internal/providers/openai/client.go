// Package openai wraps the OpenAI chat completion and speech APIs behind
// the gateway provider contract.
package openai

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
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultHTTPTimeout = 60 * time.Second
)

// Client talks to the OpenAI API for text generation and speech synthesis.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
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

// NewClient constructs an OpenAI client from provider configuration.
func NewClient(cfg config.Provider, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		voice:      strings.TrimSpace(cfg.Voice),
		costPer1K:  cfg.CostPer1K,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Name implements gateway.Provider.
func (c *Client) Name() string { return "openai" }

// EstimateCost approximates the call cost in USD without performing it.
// Text calls estimate on prompt plus expected completion tokens; speech
// calls estimate on input characters.
func (c *Client) EstimateCost(req gateway.Request) float64 {
	switch req.Capability {
	case gateway.CapabilitySpeech:
		return float64(len(req.Prompt)) / 1000 * c.costPer1K
	default:
		tokens := estimateTokens(req.Prompt) * 2
		return float64(tokens) / 1000 * c.costPer1K
	}
}

// Invoke implements gateway.Provider.
func (c *Client) Invoke(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	switch req.Capability {
	case gateway.CapabilityText:
		return c.generateText(ctx, req)
	case gateway.CapabilitySpeech:
		return c.synthesizeSpeech(ctx, req)
	default:
		return gateway.Result{}, fmt.Errorf("openai: unsupported capability %s", req.Capability)
	}
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

func (c *Client) generateText(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	var empty gateway.Result
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, errors.New("openai generate: prompt required")
	}
	if c.apiKey == "" {
		return empty, errors.New("openai generate: api key required")
	}

	endpoint, err := url.JoinPath(c.baseURL, "/chat/completions")
	if err != nil {
		return empty, fmt.Errorf("openai generate: build url: %w", err)
	}
	encoded, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return empty, fmt.Errorf("openai generate: encode request: %w", err)
	}

	body, err := c.post(ctx, endpoint, "application/json", encoded)
	if err != nil {
		return empty, err
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return empty, fmt.Errorf("openai generate: decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return empty, errors.New("openai generate: empty choices")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return empty, fmt.Errorf("openai generate: empty content (finish_reason=%q)", completion.Choices[0].FinishReason)
	}

	cost := float64(completion.Usage.TotalTokens) / 1000 * c.costPer1K
	return gateway.Result{Text: content, CostUSD: cost}, nil
}

type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// audienceVoices maps audience tags to preset narration voices.
var audienceVoices = map[string]string{
	"universal":         "alloy",
	"muslim_community":  "onyx",
	"spiritual_seekers": "nova",
}

func (c *Client) resolveVoice(req gateway.Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	if voice, ok := audienceVoices[req.Audience]; ok {
		return voice
	}
	if c.voice != "" {
		return c.voice
	}
	return "alloy"
}

func (c *Client) synthesizeSpeech(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	var empty gateway.Result
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, errors.New("openai speech: input required")
	}
	if c.apiKey == "" {
		return empty, errors.New("openai speech: api key required")
	}

	voice := c.resolveVoice(req)
	endpoint, err := url.JoinPath(c.baseURL, "/audio/speech")
	if err != nil {
		return empty, fmt.Errorf("openai speech: build url: %w", err)
	}
	encoded, err := json.Marshal(speechRequest{Model: c.model, Input: req.Prompt, Voice: voice})
	if err != nil {
		return empty, fmt.Errorf("openai speech: encode request: %w", err)
	}

	audio, err := c.post(ctx, endpoint, "application/json", encoded)
	if err != nil {
		return empty, err
	}
	if len(audio) == 0 {
		return empty, errors.New("openai speech: empty audio response")
	}

	cost := float64(len(req.Prompt)) / 1000 * c.costPer1K
	return gateway.Result{Audio: audio, CostUSD: cost}, nil
}

func (c *Client) post(ctx context.Context, endpoint, contentType string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("openai: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if retriableStatus(resp.StatusCode) {
			return nil, gateway.Transient(err)
		}
		return nil, err
	}
	return body, nil
}

func retriableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	// Rough heuristic: English averages ~1.3 tokens per word.
	return words + words/3
}
