package pipeline

import (
	"context"
	"log/slog"

	"guidora/internal/logging"
)

// StateMachine is the sole writer of unit stages. All lifecycle mutations
// flow through Submit and Transition so history stays consistent.
type StateMachine struct {
	store  *Store
	logger *slog.Logger
}

// NewStateMachine wraps a store with transition logging.
func NewStateMachine(store *Store, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		store:  store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// UnitState bundles the answer to a Query call.
type UnitState struct {
	Unit    *Unit
	History []Event
}

// Submit creates a unit in Draft and returns its identifier.
func (m *StateMachine) Submit(ctx context.Context, sourceRef, title, languageCode, audience string) (string, error) {
	unit, err := m.store.NewUnit(ctx, sourceRef, title, languageCode, audience)
	if err != nil {
		return "", err
	}
	m.logger.Info("unit submitted",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldLanguage, unit.Language),
	)
	return unit.ID, nil
}

// Transition applies a stage change guarded by the optimistic version check
// and returns the new version. ConflictError means the caller must re-read
// and retry; InvalidTransitionError means the caller is broken.
func (m *StateMachine) Transition(ctx context.Context, unitID string, expectedVersion int64, next Stage, evidence string) (int64, error) {
	unit, err := m.store.ApplyTransition(ctx, unitID, expectedVersion, next, evidence)
	if err != nil {
		return 0, err
	}
	m.logger.Info("unit transitioned",
		logging.String(logging.FieldUnitID, unitID),
		logging.String(logging.FieldStage, string(next)),
		logging.Int64("version", unit.Version),
	)
	return unit.Version, nil
}

// Query returns the unit's current state and full history.
func (m *StateMachine) Query(ctx context.Context, unitID string) (*UnitState, error) {
	unit, err := m.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	history, err := m.store.Events(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return &UnitState{Unit: unit, History: history}, nil
}

// Retry moves a failed unit back to its last successful stage.
func (m *StateMachine) Retry(ctx context.Context, unitID string) (int64, error) {
	unit, err := m.store.GetUnit(ctx, unitID)
	if err != nil {
		return 0, err
	}
	if unit.Stage != StageFailed {
		return 0, &InvalidTransitionError{UnitID: unitID, From: unit.Stage, To: unit.LastStage}
	}
	return m.Transition(ctx, unitID, unit.Version, unit.LastStage, "operator retry")
}

// Fail moves a unit into Failed with the cause recorded as evidence.
func (m *StateMachine) Fail(ctx context.Context, unitID string, expectedVersion int64, cause string) (int64, error) {
	return m.Transition(ctx, unitID, expectedVersion, StageFailed, cause)
}

// Store exposes the underlying store for read-only collaborators.
func (m *StateMachine) Store() *Store {
	return m.store
}
