package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertFingerprint registers a uniqueness signature in the corpus.
func (s *Store) InsertFingerprint(ctx context.Context, record FingerprintRecord) error {
	created := record.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO fingerprints (hash, unit_id, normalized, created_at) VALUES (?, ?, ?, ?)`,
		record.Hash,
		record.UnitID,
		record.Normalized,
		formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}

// FingerprintByHash returns the record for an exact signature match, or nil.
func (s *Store) FingerprintByHash(ctx context.Context, hash string) (*FingerprintRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT hash, unit_id, normalized, created_at FROM fingerprints WHERE hash = ?`,
		hash,
	)
	record, err := scanFingerprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fingerprint by hash: %w", err)
	}
	return record, nil
}

// ListFingerprints returns all live corpus records.
func (s *Store) ListFingerprints(ctx context.Context) ([]FingerprintRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT hash, unit_id, normalized, created_at FROM fingerprints ORDER BY created_at, hash`,
	)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()

	var records []FingerprintRecord
	for rows.Next() {
		record, err := scanFingerprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanFingerprint(scanner interface{ Scan(dest ...any) error }) (*FingerprintRecord, error) {
	var (
		record     FingerprintRecord
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&record.Hash, &record.UnitID, &record.Normalized, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	return &record, nil
}
