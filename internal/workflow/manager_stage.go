package workflow

import (
	"context"
	"errors"
	"time"

	"guidora/internal/contentid"
	"guidora/internal/gateway"
	"guidora/internal/ledger"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
)

// budgetHoldInterval is how long unit processing pauses after a denied
// reservation. Budgets replenish on day boundaries, so polling sooner only
// burns log volume.
const budgetHoldInterval = 10 * time.Minute

func (m *Manager) processUnit(ctx context.Context, unit *pipeline.Unit) {
	handler := m.handlers[unit.Stage]
	if handler == nil {
		return
	}
	logger := m.logger.With(
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldStage, string(unit.Stage)),
	)

	if err := handler.Prepare(ctx, unit); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("stage prepare failed", logging.Error(err))
		m.failUnit(ctx, unit, err)
		return
	}

	err := handler.Execute(ctx, unit)
	switch {
	case err == nil:
		m.advance(ctx, unit, handler.Target())
	case errors.Is(err, errAssetPending):
		// External collaborator has not produced the artifact yet.
	case errors.Is(err, context.Canceled):
	case errors.Is(err, contentid.ErrDuplicateContent):
		m.rejectDuplicate(ctx, unit, err)
	case errors.Is(err, ledger.ErrBudgetExceeded):
		m.holdForBudget(ctx, unit, err)
	case errors.Is(err, gateway.ErrProviderExhausted):
		// Unit stays in its stage, eligible for a later attempt once a
		// provider recovers.
		m.setLastError(err)
		logger.Warn("all providers exhausted, unit held in stage", logging.Error(err))
		if notifyErr := m.notifier.NotifyError(ctx, err, "provider gateway"); notifyErr != nil {
			logger.Debug("exhaustion notification failed", logging.Error(notifyErr))
		}
	default:
		m.setLastError(err)
		logger.Warn("stage execute failed", logging.Error(err))
		m.failUnit(ctx, unit, err)
	}
}

func (m *Manager) advance(ctx context.Context, unit *pipeline.Unit, next pipeline.Stage) {
	_, err := m.machine.Transition(ctx, unit.ID, unit.Version, next, "stage complete")
	if err == nil {
		return
	}
	if errors.Is(err, pipeline.ErrConflict) {
		// Someone else moved the unit; the next poll sees the fresh state.
		m.logger.Debug("transition lost version race",
			logging.String(logging.FieldUnitID, unit.ID),
			logging.String(logging.FieldStage, string(next)),
		)
		return
	}
	m.setLastError(err)
	m.logger.Error("stage transition failed",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldStage, string(next)),
		logging.Error(err),
	)
}

func (m *Manager) failUnit(ctx context.Context, unit *pipeline.Unit, cause error) {
	m.setLastError(cause)
	if _, err := m.machine.Fail(ctx, unit.ID, unit.Version, cause.Error()); err != nil {
		if errors.Is(err, pipeline.ErrConflict) {
			return
		}
		m.logger.Error("mark unit failed",
			logging.String(logging.FieldUnitID, unit.ID),
			logging.Error(err),
		)
		return
	}
	if notifyErr := m.notifier.NotifyError(ctx, cause, "unit "+unit.ID); notifyErr != nil {
		m.logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
}

func (m *Manager) rejectDuplicate(ctx context.Context, unit *pipeline.Unit, cause error) {
	var dup *contentid.DuplicateError
	if errors.As(cause, &dup) {
		m.logger.Info("duplicate content rejected",
			logging.String(logging.FieldUnitID, unit.ID),
			logging.String("nearest_unit", dup.NearestUnitID),
			logging.Float64(logging.FieldSimilarity, dup.Similarity),
		)
		if err := m.notifier.NotifyDuplicateRejected(ctx, unit.ID, dup.NearestUnitID, dup.Similarity); err != nil {
			m.logger.Debug("duplicate notification failed", logging.Error(err))
		}
	}
	m.failUnit(ctx, unit, cause)
}

func (m *Manager) holdForBudget(ctx context.Context, unit *pipeline.Unit, cause error) {
	m.setLastError(cause)
	m.pauseDispatch(time.Now().Add(budgetHoldInterval))
	m.logger.Warn("budget exhausted, pausing unit processing",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.Duration("hold", budgetHoldInterval),
		logging.Error(cause),
	)
	var budgetErr *ledger.BudgetError
	if errors.As(cause, &budgetErr) {
		if err := m.notifier.NotifyBudgetExceeded(ctx, budgetErr.Provider, budgetErr.Amount); err != nil {
			m.logger.Debug("budget notification failed", logging.Error(err))
		}
	}
}
