package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the referenced unit does not exist.
var ErrNotFound = errors.New("unit not found")

// ErrConflict indicates a stale version on a transition attempt. The caller
// must re-read the unit and retry; state was not mutated.
var ErrConflict = errors.New("version conflict")

// ErrInvalidTransition indicates an illegal stage transition. This is a
// caller bug, not a recoverable condition.
var ErrInvalidTransition = errors.New("invalid transition")

// ConflictError carries the version the caller expected and the version the
// unit actually holds.
type ConflictError struct {
	UnitID          string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unit %s: expected version %d, have %d", e.UnitID, e.ExpectedVersion, e.ActualVersion)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidTransitionError describes the rejected transition.
type InvalidTransitionError struct {
	UnitID string
	From   Stage
	To     Stage
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("unit %s: transition %s -> %s is not legal", e.UnitID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
