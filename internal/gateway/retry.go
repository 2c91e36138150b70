package gateway

import (
	"context"
	"time"
)

const (
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultCallTimeout = 60 * time.Second
)

// backoff is the per-call retry state machine: attempt index, next delay,
// and overall deadline. Modeling it as plain state keeps retry behavior
// testable without real sleeps.
type backoff struct {
	attempt     int
	maxAttempts int
	nextDelay   time.Duration
	maxDelay    time.Duration
	deadline    time.Time
}

func newBackoff(maxAttempts int, baseDelay, maxDelay time.Duration, deadline time.Time) *backoff {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	return &backoff{
		maxAttempts: maxAttempts,
		nextDelay:   baseDelay,
		maxDelay:    maxDelay,
		deadline:    deadline,
	}
}

// Next reports whether another attempt is allowed and the delay to wait
// before it. The first attempt has no delay.
func (b *backoff) Next(now time.Time) (time.Duration, bool) {
	if b.attempt >= b.maxAttempts {
		return 0, false
	}
	if !b.deadline.IsZero() && !now.Before(b.deadline) {
		return 0, false
	}
	b.attempt++
	if b.attempt == 1 {
		return 0, true
	}
	delay := b.nextDelay
	b.nextDelay *= 2
	if b.nextDelay > b.maxDelay {
		b.nextDelay = b.maxDelay
	}
	return delay, true
}

// Attempt returns the number of attempts started so far.
func (b *backoff) Attempt() int {
	return b.attempt
}

// sleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
