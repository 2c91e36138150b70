// Package ledger enforces provider spend budgets across time windows.
//
// Every provider call reserves its estimated cost before running and either
// commits the actual cost or releases the reservation afterwards. The
// check-and-reserve step is atomic, so concurrent calls can never jointly
// exceed the configured hard limits. A soft limit below the hard limit
// flips a warning state without rejecting reservations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"guidora/internal/config"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
)

// ErrBudgetExceeded indicates a reservation was denied because a spend
// limit would be exceeded. Never retried automatically.
var ErrBudgetExceeded = errors.New("budget exceeded")

// BudgetError reports which window rejected the reservation.
type BudgetError struct {
	Provider  string
	Amount    float64
	Window    string // "daily" or "monthly"
	Remaining float64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("reserve %.4f for %s: %s budget has %.4f remaining", e.Amount, e.Provider, e.Window, e.Remaining)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// Ledger tracks reserved and committed spend per provider per time bucket.
type Ledger struct {
	store       *pipeline.Store
	cfg         config.Budget
	logger      *slog.Logger
	now         func() time.Time
	onSoftLimit func(window string, spent, limit float64)

	mu            sync.Mutex
	softWarnedDay string
}

// Option customizes ledger construction.
type Option func(*Ledger)

// WithClock overrides the wall clock (used in tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSoftLimitNotify registers a hook fired once per day when spend
// crosses the soft limit. It runs on its own goroutine so a slow
// notification cannot stall reservations.
func WithSoftLimitNotify(fn func(window string, spent, limit float64)) Option {
	return func(l *Ledger) {
		l.onSoftLimit = fn
	}
}

// New constructs a ledger over the shared store.
func New(store *pipeline.Store, cfg config.Budget, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "ledger"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve atomically checks the remaining daily and monthly budget and
// reserves the amount. Returns a reservation id on success or a
// *BudgetError wrapped around ErrBudgetExceeded on denial.
func (l *Ledger) Reserve(ctx context.Context, provider string, amount float64) (string, error) {
	if amount < 0 {
		return "", fmt.Errorf("reserve: negative amount %.4f", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	reservationID := uuid.NewString()
	now := l.now()
	ok, dayTotal, monthTotal, err := l.store.ReserveFunds(ctx, reservationID, provider, amount, l.cfg.DailyLimit, l.cfg.MonthlyLimit, now)
	if err != nil {
		return "", fmt.Errorf("reserve budget: %w", err)
	}
	if !ok {
		budgetErr := &BudgetError{Provider: provider, Amount: amount, Window: "daily", Remaining: l.cfg.DailyLimit - dayTotal}
		if monthTotal+amount > l.cfg.MonthlyLimit {
			budgetErr.Window = "monthly"
			budgetErr.Remaining = l.cfg.MonthlyLimit - monthTotal
		}
		l.logger.Warn("reservation denied",
			logging.String(logging.FieldProvider, provider),
			logging.Float64(logging.FieldCostUSD, amount),
			logging.String("window", budgetErr.Window),
		)
		return "", budgetErr
	}

	l.checkSoftLimit(pipeline.DayBucket(now), dayTotal)

	l.logger.Debug("reserved",
		logging.String(logging.FieldProvider, provider),
		logging.String(logging.FieldReservation, reservationID),
		logging.Float64(logging.FieldCostUSD, amount),
	)
	return reservationID, nil
}

// Commit finalizes a reservation at the actual cost. The delta between the
// reserved estimate and the final amount returns to the budget; an actual
// cost above the estimate is clamped so the hard limits still hold.
func (l *Ledger) Commit(ctx context.Context, reservationID string, finalAmount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.CommitReservation(ctx, reservationID, finalAmount, l.cfg.DailyLimit, l.cfg.MonthlyLimit); err != nil {
		return fmt.Errorf("commit reservation: %w", err)
	}
	return nil
}

// Release returns a reservation to the budget without committing any spend.
// Called when the guarded provider call fails or is cancelled.
func (l *Ledger) Release(ctx context.Context, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.ReleaseReservation(ctx, reservationID); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

// Remaining reports the unreserved, uncommitted daily budget.
func (l *Ledger) Remaining(ctx context.Context) (float64, error) {
	reserved, committed, err := l.store.BucketTotals(ctx, pipeline.DayBucket(l.now()))
	if err != nil {
		return 0, err
	}
	return l.cfg.DailyLimit - reserved - committed, nil
}

// SoftLimitReached reports whether today's spend has crossed the soft limit.
func (l *Ledger) SoftLimitReached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.softWarnedDay == pipeline.DayBucket(l.now())
}

func (l *Ledger) checkSoftLimit(day string, dayTotal float64) {
	if l.cfg.SoftLimitPct <= 0 || l.softWarnedDay == day {
		return
	}
	if dayTotal >= l.cfg.DailyLimit*l.cfg.SoftLimitPct {
		l.softWarnedDay = day
		l.logger.Warn("daily spend crossed soft limit",
			logging.Float64("day_total_usd", dayTotal),
			logging.Float64("daily_limit_usd", l.cfg.DailyLimit),
		)
		if l.onSoftLimit != nil {
			go l.onSoftLimit("daily", dayTotal, l.cfg.DailyLimit)
		}
	}
}
