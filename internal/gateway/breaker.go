package gateway

import (
	"sync"
	"time"
)

// BreakerState is the circuit position for one (provider, capability) pair.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

const (
	defaultFailureThreshold = 3
	defaultCoolDown         = 2 * time.Minute
)

// breaker tracks consecutive failures for one (provider, capability) pair.
// closed -> open after threshold consecutive failures, open -> half-open
// after the cool-down, half-open admits exactly one probe whose outcome
// decides close vs re-open.
type breaker struct {
	threshold      int
	coolDown       time.Duration
	state          BreakerState
	failures       int
	lastTransition time.Time
	probing        bool
}

func newBreaker(threshold int, coolDown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}
	if coolDown <= 0 {
		coolDown = defaultCoolDown
	}
	return &breaker{
		threshold: threshold,
		coolDown:  coolDown,
		state:     BreakerClosed,
	}
}

// allow reports whether a call may proceed. In half-open it admits exactly
// one probe at a time; further callers are rejected until the probe
// reports its outcome.
func (b *breaker) allow(now time.Time) bool {
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if now.Sub(b.lastTransition) >= b.coolDown {
			b.state = BreakerHalfOpen
			b.lastTransition = now
			b.probing = true
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// releaseProbe returns an admitted probe that was never dispatched, so a
// later caller can take it. State is untouched: the circuit stays half-open
// until a real call outcome decides close vs re-open.
func (b *breaker) releaseProbe() {
	b.probing = false
}

func (b *breaker) recordSuccess(now time.Time) {
	b.failures = 0
	b.probing = false
	if b.state != BreakerClosed {
		b.state = BreakerClosed
		b.lastTransition = now
	}
}

func (b *breaker) recordFailure(now time.Time) {
	b.probing = false
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		b.lastTransition = now
		return
	}
	b.failures++
	if b.failures >= b.threshold && b.state == BreakerClosed {
		b.state = BreakerOpen
		b.lastTransition = now
	}
}

// BreakerSet owns the breakers for every (provider, capability) pair.
type BreakerSet struct {
	mu        sync.Mutex
	threshold int
	coolDown  time.Duration
	breakers  map[string]*breaker
	now       func() time.Time
}

// NewBreakerSet builds an empty breaker set. Zero values fall back to the
// defaults (3 consecutive failures, 2 minute cool-down).
func NewBreakerSet(threshold int, coolDown time.Duration, now func() time.Time) *BreakerSet {
	if now == nil {
		now = time.Now
	}
	return &BreakerSet{
		threshold: threshold,
		coolDown:  coolDown,
		breakers:  make(map[string]*breaker),
		now:       now,
	}
}

func (s *BreakerSet) key(provider string, capability Capability) string {
	return provider + "|" + string(capability)
}

// Allow reports whether a call to the provider may proceed.
func (s *BreakerSet) Allow(provider string, capability Capability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(provider, capability).allow(s.now())
}

// ReleaseProbe gives back a probe admitted by Allow when the call was
// abandoned before reaching the provider (budget denial, cost-ceiling skip).
// Must be called on every such path or a half-open circuit wedges with its
// only probe permanently taken.
func (s *BreakerSet) ReleaseProbe(provider string, capability Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(provider, capability).releaseProbe()
}

// RecordSuccess resets the consecutive-failure count and closes the circuit.
func (s *BreakerSet) RecordSuccess(provider string, capability Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(provider, capability).recordSuccess(s.now())
}

// RecordFailure counts a failure, opening the circuit at the threshold.
func (s *BreakerSet) RecordFailure(provider string, capability Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(provider, capability).recordFailure(s.now())
}

// State returns the current circuit position for status reporting.
func (s *BreakerSet) State(provider string, capability Capability) BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(provider, capability).state
}

func (s *BreakerSet) get(provider string, capability Capability) *breaker {
	key := s.key(provider, capability)
	b, ok := s.breakers[key]
	if !ok {
		b = newBreaker(s.threshold, s.coolDown)
		s.breakers[key] = b
	}
	return b
}
