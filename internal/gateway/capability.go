package gateway

import "context"

// Capability identifies one kind of provider work.
type Capability string

const (
	CapabilityText   Capability = "text-generation"
	CapabilitySpeech Capability = "speech-synthesis"
)

// Request carries one provider invocation.
type Request struct {
	Capability Capability
	// Prompt is the input text: the generation prompt for text calls, the
	// narration script for speech calls.
	Prompt   string
	Language string
	Audience string
	Voice    string
	// CostHint is an optional caller-side floor on the cost estimate, in USD.
	CostHint float64
	// UnitID ties the call to a content unit for logging and audit.
	UnitID string
}

// Result is a successful provider invocation.
type Result struct {
	// ArtifactRef is an opaque handle to the produced output (generated
	// text, or the stored audio file path).
	ArtifactRef string
	// Text holds generated text for text-generation calls.
	Text string
	// Audio holds synthesized audio bytes for speech-synthesis calls.
	Audio []byte
	// CostUSD is the actual cost of the call as reported or recomputed
	// after the fact.
	CostUSD  float64
	Provider string
}

// Provider is one generation or synthesis backend. EstimateCost must not
// perform the call: the gateway rejects over-budget requests before any
// cost is incurred.
type Provider interface {
	Name() string
	EstimateCost(req Request) float64
	Invoke(ctx context.Context, req Request) (Result, error)
}
