package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ApplyTransition moves a unit to the next stage under optimistic
// concurrency. The stage change, version bump, and history append happen in
// one transaction; on any rejection the unit is left untouched.
//
// Returns the updated unit, or a *ConflictError when expectedVersion is
// stale, or an *InvalidTransitionError when the transition is not legal.
func (s *Store) ApplyTransition(ctx context.Context, id string, expectedVersion int64, next Stage, evidence string) (*Unit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id)
	unit, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read unit for transition: %w", err)
	}

	if unit.Stage == StageFailed && unit.Abandoned {
		return nil, &InvalidTransitionError{UnitID: id, From: unit.Stage, To: next}
	}
	if !CanTransition(unit.Stage, unit.LastStage, next) {
		return nil, &InvalidTransitionError{UnitID: id, From: unit.Stage, To: next}
	}
	if unit.Version != expectedVersion {
		return nil, &ConflictError{UnitID: id, ExpectedVersion: expectedVersion, ActualVersion: unit.Version}
	}

	lastStage := unit.LastStage
	errorMessage := unit.ErrorMessage
	if next == StageFailed {
		lastStage = unit.Stage
		errorMessage = evidence
	} else {
		errorMessage = ""
	}

	newVersion := unit.Version + 1
	timestamp := formatTime(time.Now())

	res, err := tx.ExecContext(
		ctx,
		`UPDATE units SET stage = ?, last_stage = ?, version = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND version = ?`,
		next,
		nullableString(string(lastStage)),
		newVersion,
		nullableString(errorMessage),
		timestamp,
		id,
		expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition rows: %w", err)
	}
	if affected == 0 {
		// Raced with a concurrent writer between read and update.
		return nil, &ConflictError{UnitID: id, ExpectedVersion: expectedVersion, ActualVersion: unit.Version}
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO unit_events (unit_id, stage, version, evidence, created_at) VALUES (?, ?, ?, ?, ?)`,
		id,
		next,
		newVersion,
		nullableString(evidence),
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	unit.Stage = next
	unit.LastStage = lastStage
	unit.Version = newVersion
	unit.ErrorMessage = errorMessage
	return unit, nil
}

// Events returns a unit's history, oldest first. The log is append-only;
// rows are never updated or deleted.
func (s *Store) Events(ctx context.Context, unitID string) ([]Event, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, unit_id, stage, version, evidence, created_at FROM unit_events WHERE unit_id = ? ORDER BY id`,
		unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			stageStr  string
			evidence  sql.NullString
			createdAt sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.UnitID, &stageStr, &event.Version, &evidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Stage = Stage(stageStr)
		event.Evidence = evidence.String
		if created, err := parseTimeString(createdAt.String); err == nil {
			event.CreatedAt = created
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
