package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SlotForUnit returns the slot already holding the unit, or nil.
func (s *Store) SlotForUnit(ctx context.Context, unitID string) (*Slot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT slot_date, slot_time, language, unit_id, created_at FROM publish_slots WHERE unit_id = ?`,
		unitID,
	)
	slot, err := scanSlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("slot for unit: %w", err)
	}
	return slot, nil
}

// SlotsForDate returns all assigned slots on a date, ordered by time.
func (s *Store) SlotsForDate(ctx context.Context, date string) ([]Slot, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT slot_date, slot_time, language, unit_id, created_at FROM publish_slots WHERE slot_date = ? ORDER BY slot_time`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("slots for date: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

// ClaimSlot inserts a slot assignment. Returns ok=false when the slot is
// already taken; the primary key keeps at most one unit per slot and the
// unique unit constraint keeps at most one slot per unit.
func (s *Store) ClaimSlot(ctx context.Context, slot Slot) (bool, error) {
	created := slot.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO publish_slots (slot_date, slot_time, language, unit_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		slot.Date,
		slot.Time,
		slot.Language,
		slot.UnitID,
		formatTime(created),
	)
	if err != nil {
		return false, fmt.Errorf("claim slot: %w", err)
	}
	claimed, err := s.SlotForUnit(ctx, slot.UnitID)
	if err != nil {
		return false, err
	}
	return claimed != nil && claimed.Date == slot.Date && claimed.Time == slot.Time, nil
}

// ReleaseSlot removes a unit's slot assignment, freeing the bucket.
func (s *Store) ReleaseSlot(ctx context.Context, unitID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM publish_slots WHERE unit_id = ?`, unitID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// CadenceState tracks the last completed scheduler pass.
type CadenceState struct {
	Name           string
	LastRun        time.Time
	UnitsProcessed int
}

// CadenceRun returns the recorded state for a named cadence, or nil.
func (s *Store) CadenceRun(ctx context.Context, name string) (*CadenceState, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT name, last_run, units_processed FROM cadence_runs WHERE name = ?`,
		name,
	)
	var (
		state   CadenceState
		lastRaw string
	)
	if err := row.Scan(&state.Name, &lastRaw, &state.UnitsProcessed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cadence run: %w", err)
	}
	if last, err := parseTimeString(lastRaw); err == nil {
		state.LastRun = last
	}
	return &state, nil
}

// RecordCadenceRun upserts the cadence state after a completed pass.
func (s *Store) RecordCadenceRun(ctx context.Context, name string, ranAt time.Time, unitsProcessed int) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cadence_runs (name, last_run, units_processed) VALUES (?, ?, ?)
         ON CONFLICT (name) DO UPDATE SET last_run = excluded.last_run, units_processed = excluded.units_processed`,
		name,
		formatTime(ranAt),
		unitsProcessed,
	)
	if err != nil {
		return fmt.Errorf("record cadence run: %w", err)
	}
	return nil
}

func scanSlot(scanner interface{ Scan(dest ...any) error }) (*Slot, error) {
	var (
		slot       Slot
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&slot.Date, &slot.Time, &slot.Language, &slot.UnitID, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		slot.CreatedAt = created
	}
	return &slot, nil
}
