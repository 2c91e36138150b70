package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LedgerEntry holds reserved and committed spend for one provider in one
// time bucket (YYYY-MM-DD for days, YYYY-MM for months).
type LedgerEntry struct {
	Provider  string
	Bucket    string
	Reserved  float64
	Committed float64
}

// DayBucket formats a time as a daily ledger bucket.
func DayBucket(t time.Time) string { return t.UTC().Format("2006-01-02") }

// MonthBucket formats a time as a monthly ledger bucket.
func MonthBucket(t time.Time) string { return t.UTC().Format("2006-01") }

// ReserveFunds atomically checks both window limits and reserves the amount
// when they hold. Returns ok=false without mutating anything when either
// limit would be exceeded. The returned totals include the new reservation
// when ok, the pre-existing totals otherwise.
func (s *Store) ReserveFunds(ctx context.Context, reservationID, provider string, amount, dayLimit, monthLimit float64, now time.Time) (ok bool, dayTotal, monthTotal float64, err error) {
	day := DayBucket(now)
	month := MonthBucket(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, 0, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	dayTotal, err = bucketTotal(ctx, tx, day)
	if err != nil {
		return false, 0, 0, err
	}
	monthTotal, err = bucketTotal(ctx, tx, month)
	if err != nil {
		return false, 0, 0, err
	}

	if dayTotal+amount > dayLimit || monthTotal+amount > monthLimit {
		return false, dayTotal, monthTotal, nil
	}

	for _, bucket := range []string{day, month} {
		if err := adjustEntry(ctx, tx, provider, bucket, amount, 0); err != nil {
			return false, 0, 0, err
		}
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO reservations (id, provider, amount, day_bucket, month_bucket, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		reservationID,
		provider,
		amount,
		day,
		month,
		formatTime(now),
	)
	if err != nil {
		return false, 0, 0, fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, 0, fmt.Errorf("commit reservation: %w", err)
	}
	return true, dayTotal + amount, monthTotal + amount, nil
}

// CommitReservation converts a reservation into committed spend. The full
// reserved amount is released and the final cost committed, so any delta
// between estimate and actual is returned to the budget. A final cost above
// the reservation is clamped to the remaining window headroom so a bucket's
// reserved+committed total never passes its limit. Limits of zero or below
// disable the clamp.
func (s *Store) CommitReservation(ctx context.Context, reservationID string, finalAmount, dayLimit, monthLimit float64) error {
	return s.settleReservation(ctx, reservationID, finalAmount, dayLimit, monthLimit, true)
}

// ReleaseReservation returns a reservation to the budget without committing.
func (s *Store) ReleaseReservation(ctx context.Context, reservationID string) error {
	return s.settleReservation(ctx, reservationID, 0, 0, 0, false)
}

func (s *Store) settleReservation(ctx context.Context, reservationID string, finalAmount, dayLimit, monthLimit float64, commit bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		provider string
		amount   float64
		day      string
		month    string
	)
	row := tx.QueryRowContext(
		ctx,
		`SELECT provider, amount, day_bucket, month_bucket FROM reservations WHERE id = ?`,
		reservationID,
	)
	if err := row.Scan(&provider, &amount, &day, &month); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reservation %s: %w", reservationID, ErrNotFound)
		}
		return fmt.Errorf("read reservation: %w", err)
	}

	committed := 0.0
	if commit {
		committed = finalAmount
		if finalAmount > amount {
			for bucket, limit := range map[string]float64{day: dayLimit, month: monthLimit} {
				if limit <= 0 {
					continue
				}
				total, err := bucketTotal(ctx, tx, bucket)
				if err != nil {
					return err
				}
				// The reservation still counts toward total here; settling
				// replaces it, so the bucket can absorb limit-total+amount.
				if allowed := limit - total + amount; committed > allowed {
					committed = allowed
				}
			}
			if committed < amount {
				// The reservation itself was admitted against the limit, so
				// committing it in full never raises the bucket total.
				committed = amount
			}
		}
	}
	for _, bucket := range []string{day, month} {
		if err := adjustEntry(ctx, tx, provider, bucket, -amount, committed); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, reservationID); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle: %w", err)
	}
	return nil
}

// BucketTotals returns the summed reserved and committed amounts for a bucket.
func (s *Store) BucketTotals(ctx context.Context, bucket string) (reserved, committed float64, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(reserved), 0), COALESCE(SUM(committed), 0) FROM ledger_entries WHERE bucket = ?`,
		bucket,
	)
	if err := row.Scan(&reserved, &committed); err != nil {
		return 0, 0, fmt.Errorf("bucket totals: %w", err)
	}
	return reserved, committed, nil
}

// LedgerEntries lists per-provider ledger rows for a bucket.
func (s *Store) LedgerEntries(ctx context.Context, bucket string) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT provider, bucket, reserved, committed FROM ledger_entries WHERE bucket = ? ORDER BY provider`,
		bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		if err := rows.Scan(&entry.Provider, &entry.Bucket, &entry.Reserved, &entry.Committed); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func bucketTotal(ctx context.Context, tx *sql.Tx, bucket string) (float64, error) {
	var total float64
	row := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(reserved + committed), 0) FROM ledger_entries WHERE bucket = ?`,
		bucket,
	)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("bucket total %s: %w", bucket, err)
	}
	return total, nil
}

func adjustEntry(ctx context.Context, tx *sql.Tx, provider, bucket string, reservedDelta, committedDelta float64) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO ledger_entries (provider, bucket, reserved, committed) VALUES (?, ?, ?, ?)
         ON CONFLICT (provider, bucket) DO UPDATE SET
             reserved = MAX(reserved + excluded.reserved, 0),
             committed = committed + excluded.committed`,
		provider,
		bucket,
		reservedDelta,
		committedDelta,
	)
	if err != nil {
		return fmt.Errorf("adjust ledger entry %s/%s: %w", provider, bucket, err)
	}
	return nil
}
