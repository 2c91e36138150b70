package workflow

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"guidora/internal/logging"
)

// Start begins background processing. It returns once the poll and cadence
// loops are running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight work.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	group := new(errgroup.Group)
	group.SetLimit(m.workers)

	poll := time.NewTicker(m.pollInterval)
	defer poll.Stop()
	cadence := time.NewTicker(m.cadenceInterval)
	defer cadence.Stop()

	m.dispatch(ctx, group)
	m.maybeRunCadence(ctx)
	for {
		select {
		case <-ctx.Done():
			_ = group.Wait()
			return
		case <-poll.C:
			m.dispatch(ctx, group)
		case <-cadence.C:
			m.runCadence(ctx)
		}
	}
}

// dispatch hands every processable unit with a registered handler to the
// worker pool. Units already being worked on are skipped, and dispatch
// backs off entirely while a budget hold is in effect.
func (m *Manager) dispatch(ctx context.Context, group *errgroup.Group) {
	m.mu.Lock()
	paused := time.Now().Before(m.pauseUntil)
	m.mu.Unlock()
	if paused {
		return
	}

	units, err := m.store.ListUnits(ctx, m.stageOrder...)
	if err != nil {
		m.setLastError(err)
		m.logger.Warn("list processable units",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check pipeline database access"),
		)
		return
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			return
		}
		if !unit.IsProcessable() {
			continue
		}
		m.mu.Lock()
		if m.inflight[unit.ID] {
			m.mu.Unlock()
			continue
		}
		m.inflight[unit.ID] = true
		m.mu.Unlock()

		candidate := unit
		started := group.TryGo(func() error {
			defer func() {
				m.mu.Lock()
				delete(m.inflight, candidate.ID)
				m.mu.Unlock()
			}()
			m.processUnit(ctx, candidate)
			return nil
		})
		if !started {
			// Pool is full; release the claim and wait for the next poll.
			m.mu.Lock()
			delete(m.inflight, candidate.ID)
			m.mu.Unlock()
			return
		}
	}
}

// maybeRunCadence triggers a scheduling pass at startup unless a recorded
// pass already covers the current interval, so a daemon restart does not
// schedule the same window twice.
func (m *Manager) maybeRunCadence(ctx context.Context) {
	last, err := m.sched.LastCadence(ctx)
	if err != nil {
		m.logger.Warn("read cadence state", logging.Error(err))
		return
	}
	if last != nil && time.Since(last.LastRun) < m.cadenceInterval {
		m.logger.Debug("cadence window already covered",
			logging.Duration("since_last_run", time.Since(last.LastRun)))
		return
	}
	m.runCadence(ctx)
}

func (m *Manager) runCadence(ctx context.Context) {
	result, err := m.sched.RunCadence(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.setLastError(err)
		m.logger.Warn("scheduler cadence failed", logging.Error(err))
		if notifyErr := m.notifier.NotifyError(ctx, err, "scheduler cadence"); notifyErr != nil {
			m.logger.Debug("cadence error notification failed", logging.Error(notifyErr))
		}
		return
	}
	if result.Scheduled > 0 || result.Deferred > 0 {
		if err := m.notifier.NotifyBatchScheduled(ctx, result.Scheduled, result.Deferred); err != nil {
			m.logger.Debug("batch notification failed", logging.Error(err))
		}
	}
}

// pauseDispatch holds off unit processing until the deadline, used when the
// budget is exhausted so the poll loop does not spin on denied reservations.
func (m *Manager) pauseDispatch(until time.Time) {
	m.mu.Lock()
	if until.After(m.pauseUntil) {
		m.pauseUntil = until
	}
	m.mu.Unlock()
}
