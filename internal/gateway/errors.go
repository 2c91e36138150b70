package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrTransient marks provider failures that warrant a local retry
// (timeouts, rate limits, server errors).
var ErrTransient = errors.New("transient provider failure")

// ErrProviderExhausted indicates every eligible provider failed. The unit
// stays in its current stage and is eligible for manual retry.
var ErrProviderExhausted = errors.New("all providers exhausted")

// ErrCostCeiling marks a provider whose estimated cost for a single request
// exceeds the configured per-request ceiling. The provider is skipped; a
// cheaper provider in the chain may still serve the request.
var ErrCostCeiling = errors.New("per-request cost ceiling exceeded")

// ExhaustedError records the per-provider failures behind an exhaustion.
type ExhaustedError struct {
	Capability Capability
	Attempts   map[string]error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for provider, err := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", provider, err))
	}
	return fmt.Sprintf("%s: no provider succeeded (%s)", e.Capability, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error { return ErrProviderExhausted }

// Transient wraps an error with the transient marker.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsRetriable reports whether err represents a condition that warrants an
// automatic retry against the same provider.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "429") || strings.Contains(message, "rate limit") {
		return true
	}
	// Server errors are typically transient (outages, deploys, overload).
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(message, "http "+code) {
			return true
		}
	}
	for _, token := range []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"temporary failure",
		"awaiting headers",
	} {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
