package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"guidora/internal/config"
	"guidora/internal/gateway"
	"guidora/internal/providers/openai"
)

func testProviderConfig(baseURL string) config.Provider {
	return config.Provider{
		Enabled:   true,
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Model:     "gpt-4-turbo",
		CostPer1K: 0.01,
	}
}

func TestGenerateTextParsesCompletion(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  a script about patience  "}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"total_tokens": 500},
		})
	}))
	defer server.Close()

	client := openai.NewClient(testProviderConfig(server.URL))
	result, err := client.Invoke(context.Background(), gateway.Request{
		Capability: gateway.CapabilityText,
		Prompt:     "write a script about patience",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path = %q, want /chat/completions", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4-turbo" {
		t.Fatalf("model = %v, want gpt-4-turbo", gotBody["model"])
	}
	if result.Text != "a script about patience" {
		t.Fatalf("text = %q, want trimmed content", result.Text)
	}
	// 500 tokens at $0.01/1k.
	if result.CostUSD != 0.005 {
		t.Fatalf("cost = %v, want 0.005", result.CostUSD)
	}
}

func TestGenerateTextRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := openai.NewClient(testProviderConfig(server.URL))
	_, err := client.Invoke(context.Background(), gateway.Request{
		Capability: gateway.CapabilityText,
		Prompt:     "anything",
	})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if gateway.IsRetriable(err) {
		t.Fatalf("empty choices should not be retriable: %v", err)
	}
}

func TestSynthesizeSpeechResolvesAudienceVoice(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte("mp3 bytes"))
	}))
	defer server.Close()

	client := openai.NewClient(testProviderConfig(server.URL))
	result, err := client.Invoke(context.Background(), gateway.Request{
		Capability: gateway.CapabilitySpeech,
		Prompt:     "narrate this",
		Audience:   "muslim_community",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotBody["voice"] != "onyx" {
		t.Fatalf("voice = %v, want onyx for muslim_community", gotBody["voice"])
	}
	if string(result.Audio) != "mp3 bytes" {
		t.Fatalf("audio = %q", result.Audio)
	}
}

func TestSynthesizeSpeechPrefersExplicitVoice(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte("mp3 bytes"))
	}))
	defer server.Close()

	client := openai.NewClient(testProviderConfig(server.URL))
	_, err := client.Invoke(context.Background(), gateway.Request{
		Capability: gateway.CapabilitySpeech,
		Prompt:     "narrate this",
		Audience:   "universal",
		Voice:      "shimmer",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if gotBody["voice"] != "shimmer" {
		t.Fatalf("voice = %v, want explicit shimmer", gotBody["voice"])
	}
}

func TestServerErrorsAreMarkedTransient(t *testing.T) {
	cases := []struct {
		status    int
		retriable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", tc.status)
		}))

		client := openai.NewClient(testProviderConfig(server.URL))
		_, err := client.Invoke(context.Background(), gateway.Request{
			Capability: gateway.CapabilityText,
			Prompt:     "anything",
		})
		server.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := errors.Is(err, gateway.ErrTransient); got != tc.retriable {
			t.Fatalf("status %d: transient = %v, want %v (%v)", tc.status, got, tc.retriable, err)
		}
	}
}

func TestEstimateCostScalesWithPrompt(t *testing.T) {
	client := openai.NewClient(testProviderConfig("https://example.invalid"))

	short := client.EstimateCost(gateway.Request{Capability: gateway.CapabilityText, Prompt: "one two three"})
	long := client.EstimateCost(gateway.Request{Capability: gateway.CapabilityText, Prompt: "one two three four five six seven eight nine ten"})
	if short <= 0 || long <= short {
		t.Fatalf("estimates = %v then %v, want positive and increasing", short, long)
	}
}
