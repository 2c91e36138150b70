package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"guidora/internal/config"
	"guidora/internal/ledger"
	"guidora/internal/logging"
)

var errCircuitOpen = errors.New("circuit open")

type providerEntry struct {
	provider    Provider
	priority    int
	maxAttempts int
	timeout     time.Duration
	sem         chan struct{}
}

// Gateway fronts all provider calls with budget checks, retries, failover,
// and circuit breaking.
type Gateway struct {
	ledger    *ledger.Ledger
	breakers  *BreakerSet
	providers map[Capability][]providerEntry
	logger    *slog.Logger

	baseDelay   time.Duration
	maxDelay    time.Duration
	costCeiling float64
	sleep       func(context.Context, time.Duration) error
	now         func() time.Time
}

// Option customizes gateway construction.
type Option func(*Gateway)

// WithBackoff overrides the retry backoff delays.
func WithBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(g *Gateway) {
		g.baseDelay = baseDelay
		g.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry waits are performed (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Gateway) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithClock overrides the wall clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCostCeiling caps the estimated cost of any single provider call.
// Providers whose estimate exceeds the ceiling are skipped in the failover
// chain. Zero disables the cap.
func WithCostCeiling(limit float64) Option {
	return func(g *Gateway) {
		g.costCeiling = limit
	}
}

// WithBreakerSet substitutes a preconfigured breaker set.
func WithBreakerSet(breakers *BreakerSet) Option {
	return func(g *Gateway) {
		if breakers != nil {
			g.breakers = breakers
		}
	}
}

// New constructs an empty gateway; providers are added with Register.
func New(costLedger *ledger.Ledger, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		ledger:    costLedger,
		breakers:  NewBreakerSet(defaultFailureThreshold, defaultCoolDown, nil),
		providers: make(map[Capability][]providerEntry),
		logger:    logging.NewComponentLogger(logger, "gateway"),
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		sleep:     sleepWithContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a provider for a capability using its configured priority,
// timeout, attempt, and concurrency settings.
func (g *Gateway) Register(capability Capability, provider Provider, cfg config.Provider) {
	entry := providerEntry{
		provider:    provider,
		priority:    cfg.Priority,
		maxAttempts: cfg.MaxAttempts,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		sem:         make(chan struct{}, cfg.Concurrency),
	}
	if entry.maxAttempts <= 0 {
		entry.maxAttempts = 1
	}
	if entry.timeout <= 0 {
		entry.timeout = defaultCallTimeout
	}
	if cap(entry.sem) == 0 {
		entry.sem = make(chan struct{}, 1)
	}

	entries := append(g.providers[capability], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	g.providers[capability] = entries
}

// Providers lists the registered provider names for a capability in
// failover order.
func (g *Gateway) Providers(capability Capability) []string {
	entries := g.providers[capability]
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.provider.Name())
	}
	return names
}

// BreakerState exposes circuit positions for status reporting.
func (g *Gateway) BreakerState(provider string, capability Capability) BreakerState {
	return g.breakers.State(provider, capability)
}

// Invoke runs a request through the failover chain. Budget denials surface
// immediately without retry or failover; transient provider failures are
// retried locally, then the next provider is tried. When every provider
// fails, the call returns an *ExhaustedError and all reservations have
// been released.
func (g *Gateway) Invoke(ctx context.Context, req Request) (Result, error) {
	entries := g.providers[req.Capability]
	if len(entries) == 0 {
		return Result{}, fmt.Errorf("no providers registered for %s", req.Capability)
	}

	failures := make(map[string]error, len(entries))
	for _, entry := range entries {
		name := entry.provider.Name()

		if !g.breakers.Allow(name, req.Capability) {
			// Skipped without consuming an attempt.
			failures[name] = errCircuitOpen
			g.logger.Debug("provider skipped, circuit open",
				logging.String(logging.FieldProvider, name),
				logging.String(logging.FieldCapability, string(req.Capability)),
			)
			continue
		}
		// A half-open circuit admits exactly one probe call: no local retries.
		maxAttempts := entry.maxAttempts
		if g.breakers.State(name, req.Capability) == BreakerHalfOpen {
			maxAttempts = 1
		}

		estimate := entry.provider.EstimateCost(req)
		if req.CostHint > estimate {
			estimate = req.CostHint
		}
		if g.costCeiling > 0 && estimate > g.costCeiling {
			g.breakers.ReleaseProbe(name, req.Capability)
			failures[name] = fmt.Errorf("%w: estimated $%.4f, ceiling $%.4f", ErrCostCeiling, estimate, g.costCeiling)
			g.logger.Warn("provider skipped, estimate over per-request ceiling",
				logging.String(logging.FieldProvider, name),
				logging.Float64(logging.FieldCostUSD, estimate),
			)
			continue
		}

		reservationID, err := g.ledger.Reserve(ctx, name, estimate)
		if err != nil {
			// The call never reached the provider: hand back any half-open
			// probe Allow admitted above.
			g.breakers.ReleaseProbe(name, req.Capability)
			if errors.Is(err, ledger.ErrBudgetExceeded) {
				// Terminal: silent retry could mask runaway spend.
				return Result{}, err
			}
			failures[name] = err
			continue
		}

		result, err := g.invokeWithRetry(ctx, entry, maxAttempts, req)
		if err == nil {
			if result.CostUSD <= 0 {
				result.CostUSD = estimate
			}
			if commitErr := g.ledger.Commit(ctx, reservationID, result.CostUSD); commitErr != nil {
				g.logger.Error("commit after successful call failed",
					logging.String(logging.FieldProvider, name),
					logging.Error(commitErr),
				)
			}
			g.breakers.RecordSuccess(name, req.Capability)
			result.Provider = name
			g.logger.Info("provider call succeeded",
				logging.String(logging.FieldProvider, name),
				logging.String(logging.FieldCapability, string(req.Capability)),
				logging.String(logging.FieldUnitID, req.UnitID),
				logging.Float64(logging.FieldCostUSD, result.CostUSD),
			)
			return result, nil
		}

		// Cancellation and failure both return the reservation to the budget.
		if releaseErr := g.ledger.Release(ctx, reservationID); releaseErr != nil {
			g.logger.Error("release reservation failed",
				logging.String(logging.FieldReservation, reservationID),
				logging.Error(releaseErr),
			)
		}
		if ctx.Err() != nil {
			// Cancellation can strike before the first attempt dispatches;
			// releasing is a no-op when an outcome was already recorded.
			g.breakers.ReleaseProbe(name, req.Capability)
			return Result{}, ctx.Err()
		}

		failures[name] = err
		g.logger.Warn("provider failed, trying next in priority order",
			logging.String(logging.FieldProvider, name),
			logging.String(logging.FieldCapability, string(req.Capability)),
			logging.Error(err),
		)
	}

	return Result{}, &ExhaustedError{Capability: req.Capability, Attempts: failures}
}

func (g *Gateway) invokeWithRetry(ctx context.Context, entry providerEntry, maxAttempts int, req Request) (Result, error) {
	bo := newBackoff(maxAttempts, g.baseDelay, g.maxDelay, time.Time{})
	name := entry.provider.Name()

	var lastErr error
	for {
		delay, ok := bo.Next(g.now())
		if !ok {
			if lastErr == nil {
				lastErr = errors.New("no attempts allowed")
			}
			return Result{}, lastErr
		}
		if delay > 0 {
			if err := g.sleep(ctx, delay); err != nil {
				return Result{}, err
			}
		}

		select {
		case entry.sem <- struct{}{}:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}

		callCtx, cancel := context.WithTimeout(ctx, entry.timeout)
		result, err := entry.provider.Invoke(callCtx, req)
		cancel()
		<-entry.sem

		if err == nil {
			return result, nil
		}

		g.breakers.RecordFailure(name, req.Capability)
		lastErr = err
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !IsRetriable(err) {
			return Result{}, err
		}
		g.logger.Debug("transient failure, backing off",
			logging.String(logging.FieldProvider, name),
			logging.Int(logging.FieldAttempt, bo.Attempt()),
			logging.Error(err),
		)
	}
}
