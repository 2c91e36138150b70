package gateway_test

import (
	"testing"
	"time"

	"guidora/internal/gateway"
)

func TestBreakerLifecycle(t *testing.T) {
	clock := &movableClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	set := gateway.NewBreakerSet(3, time.Minute, clock.Now)

	const provider = "alpha"
	capability := gateway.CapabilityText

	for i := 0; i < 2; i++ {
		set.RecordFailure(provider, capability)
		if !set.Allow(provider, capability) {
			t.Fatalf("circuit rejected call after %d failures, threshold is 3", i+1)
		}
	}

	set.RecordFailure(provider, capability)
	if set.Allow(provider, capability) {
		t.Fatal("circuit still admits calls after reaching the failure threshold")
	}
	if state := set.State(provider, capability); state != gateway.BreakerOpen {
		t.Fatalf("state = %s, want open", state)
	}

	// Before the cool-down elapses the circuit stays shut.
	clock.Advance(30 * time.Second)
	if set.Allow(provider, capability) {
		t.Fatal("circuit admitted a call before the cool-down elapsed")
	}

	// After the cool-down exactly one probe is admitted.
	clock.Advance(time.Minute)
	if !set.Allow(provider, capability) {
		t.Fatal("circuit rejected the probe after the cool-down")
	}
	if state := set.State(provider, capability); state != gateway.BreakerHalfOpen {
		t.Fatalf("state = %s, want half-open", state)
	}
	if set.Allow(provider, capability) {
		t.Fatal("half-open circuit admitted a second concurrent probe")
	}

	// A failed probe re-opens without touching the failure count logic.
	set.RecordFailure(provider, capability)
	if state := set.State(provider, capability); state != gateway.BreakerOpen {
		t.Fatalf("state = %s after failed probe, want open", state)
	}
	if set.Allow(provider, capability) {
		t.Fatal("circuit admitted a call immediately after a failed probe")
	}

	// A successful probe after the next cool-down closes the circuit again.
	clock.Advance(2 * time.Minute)
	if !set.Allow(provider, capability) {
		t.Fatal("circuit rejected the second probe")
	}
	set.RecordSuccess(provider, capability)
	if state := set.State(provider, capability); state != gateway.BreakerClosed {
		t.Fatalf("state = %s after successful probe, want closed", state)
	}
	if !set.Allow(provider, capability) {
		t.Fatal("closed circuit rejected a call")
	}
}

func TestReleaseProbeReturnsHalfOpenSlot(t *testing.T) {
	clock := &movableClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	set := gateway.NewBreakerSet(3, time.Minute, clock.Now)

	const provider = "alpha"
	capability := gateway.CapabilityText

	for i := 0; i < 3; i++ {
		set.RecordFailure(provider, capability)
	}
	clock.Advance(2 * time.Minute)
	if !set.Allow(provider, capability) {
		t.Fatal("circuit rejected the probe after the cool-down")
	}
	if set.Allow(provider, capability) {
		t.Fatal("half-open circuit admitted a second concurrent probe")
	}

	// An abandoned probe hands its slot back without moving the state.
	set.ReleaseProbe(provider, capability)
	if state := set.State(provider, capability); state != gateway.BreakerHalfOpen {
		t.Fatalf("state = %s after released probe, want half-open", state)
	}
	if !set.Allow(provider, capability) {
		t.Fatal("circuit rejected a probe after the previous one was released")
	}
	set.RecordSuccess(provider, capability)
	if state := set.State(provider, capability); state != gateway.BreakerClosed {
		t.Fatalf("state = %s, want closed", state)
	}
}

func TestBreakersAreIndependentPerCapability(t *testing.T) {
	set := gateway.NewBreakerSet(1, time.Minute, nil)

	set.RecordFailure("alpha", gateway.CapabilityText)
	if set.Allow("alpha", gateway.CapabilityText) {
		t.Fatal("text circuit should be open")
	}
	if !set.Allow("alpha", gateway.CapabilitySpeech) {
		t.Fatal("speech circuit should be unaffected")
	}
	if !set.Allow("beta", gateway.CapabilityText) {
		t.Fatal("other providers should be unaffected")
	}
}
