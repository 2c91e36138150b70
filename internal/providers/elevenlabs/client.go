// Package elevenlabs wraps the ElevenLabs text-to-speech API behind the
// gateway provider contract.
package elevenlabs

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
	defaultBaseURL     = "https://api.elevenlabs.io/v1"
	defaultHTTPTimeout = 120 * time.Second

	// defaultVoiceID is the Rachel preset, a neutral narration voice.
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// Client talks to the ElevenLabs speech synthesis API.
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

// NewClient constructs an ElevenLabs client from provider configuration.
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
	if client.model == "" {
		client.model = "eleven_multilingual_v2"
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Name implements gateway.Provider.
func (c *Client) Name() string { return "elevenlabs" }

// EstimateCost approximates the call cost from the input character count;
// ElevenLabs bills per character.
func (c *Client) EstimateCost(req gateway.Request) float64 {
	return float64(len(req.Prompt)) / 1000 * c.costPer1K
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Invoke implements gateway.Provider.
func (c *Client) Invoke(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	var empty gateway.Result
	if req.Capability != gateway.CapabilitySpeech {
		return empty, fmt.Errorf("elevenlabs: unsupported capability %s", req.Capability)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return empty, errors.New("elevenlabs: input required")
	}
	if c.apiKey == "" {
		return empty, errors.New("elevenlabs: api key required")
	}

	voice := req.Voice
	if voice == "" {
		voice = c.voice
	}
	if voice == "" {
		voice = defaultVoiceID
	}

	endpoint, err := url.JoinPath(c.baseURL, "/text-to-speech/", voice)
	if err != nil {
		return empty, fmt.Errorf("elevenlabs: build url: %w", err)
	}
	encoded, err := json.Marshal(synthesisRequest{Text: req.Prompt, ModelID: c.model})
	if err != nil {
		return empty, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("elevenlabs: request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("elevenlabs: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		reqErr := fmt.Errorf("elevenlabs: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
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
	if len(body) == 0 {
		return empty, errors.New("elevenlabs: empty audio response")
	}

	cost := float64(len(req.Prompt)) / 1000 * c.costPer1K
	return gateway.Result{Audio: body, CostUSD: cost}, nil
}
