package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewUnit inserts a unit in Draft and appends its first history event.
func (s *Store) NewUnit(ctx context.Context, sourceRef, title, languageCode, audience string) (*Unit, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO units (id, source_ref, title, language, audience, stage, version, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id,
		nullableString(sourceRef),
		nullableString(title),
		languageCode,
		nullableString(audience),
		StageDraft,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert unit: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO unit_events (unit_id, stage, version, evidence, created_at) VALUES (?, ?, 1, ?, ?)`,
		id,
		StageDraft,
		nullableString(sourceRef),
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert unit event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unit: %w", err)
	}
	return s.GetUnit(ctx, id)
}

// GetUnit fetches a unit by identifier. Returns ErrNotFound when missing.
func (s *Store) GetUnit(ctx context.Context, id string) (*Unit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id)
	unit, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return unit, nil
}

// UnitsByStage returns units in a stage ordered by creation time, oldest first.
func (s *Store) UnitsByStage(ctx context.Context, stage Stage) ([]*Unit, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+unitColumns+` FROM units WHERE stage = ? ORDER BY created_at, id`,
		stage,
	)
	if err != nil {
		return nil, fmt.Errorf("query by stage: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

// ListUnits returns units filtered by stage set, or all units when none given.
func (s *Store) ListUnits(ctx context.Context, stages ...Stage) ([]*Unit, error) {
	baseQuery := `SELECT ` + unitColumns + ` FROM units`
	orderClause := ` ORDER BY created_at, id`

	var (
		rows *sql.Rows
		err  error
	)
	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

// SetFingerprint records the uniqueness signature on a unit. The signature
// is written exactly once; later calls for the same unit are rejected.
func (s *Store) SetFingerprint(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE units SET fingerprint = ?, updated_at = ? WHERE id = ? AND (fingerprint IS NULL OR fingerprint = '')`,
		hash,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set fingerprint rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %s: fingerprint already set or unit missing", id)
	}
	return nil
}

// AddCost accrues provider spend against a unit.
func (s *Store) AddCost(ctx context.Context, id string, amount float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE units SET cost_usd = cost_usd + ?, updated_at = ? WHERE id = ?`,
		amount,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("add cost: %w", err)
	}
	return nil
}

// SetArtifacts replaces the artifact handle payload on a unit.
func (s *Store) SetArtifacts(ctx context.Context, id, artifactsJSON string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE units SET artifacts_json = ?, updated_at = ? WHERE id = ?`,
		nullableString(artifactsJSON),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set artifacts: %w", err)
	}
	return nil
}

// Abandon marks a failed unit as operator-acknowledged and terminal.
func (s *Store) Abandon(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE units SET abandoned = 1, updated_at = ? WHERE id = ? AND stage = ?`,
		formatTime(time.Now()),
		id,
		StageFailed,
	)
	if err != nil {
		return fmt.Errorf("abandon unit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("abandon rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %s is not in a failed stage", id)
	}
	return nil
}

// CountByStageAndLanguage aggregates unit counts for status reporting.
func (s *Store) CountByStageAndLanguage(ctx context.Context) ([]StageCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT stage, language, COUNT(1) FROM units GROUP BY stage, language ORDER BY stage, language`,
	)
	if err != nil {
		return nil, fmt.Errorf("count units: %w", err)
	}
	defer rows.Close()

	var counts []StageCount
	for rows.Next() {
		var c StageCount
		var stageStr string
		if err := rows.Scan(&stageStr, &c.Language, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		c.Stage = Stage(stageStr)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func collectUnits(rows *sql.Rows) ([]*Unit, error) {
	var units []*Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}
