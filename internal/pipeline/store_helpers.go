package pipeline

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const unitColumns = "id, source_ref, title, language, audience, fingerprint, stage, last_stage, version, cost_usd, artifacts_json, error_message, abandoned, created_at, updated_at"

func scanUnit(scanner interface{ Scan(dest ...any) error }) (*Unit, error) {
	var (
		id           string
		sourceRef    sql.NullString
		title        sql.NullString
		languageCode string
		audience     sql.NullString
		fingerprint  sql.NullString
		stageStr     string
		lastStage    sql.NullString
		version      int64
		costUSD      float64
		artifacts    sql.NullString
		errorMessage sql.NullString
		abandoned    sql.NullInt64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceRef,
		&title,
		&languageCode,
		&audience,
		&fingerprint,
		&stageStr,
		&lastStage,
		&version,
		&costUSD,
		&artifacts,
		&errorMessage,
		&abandoned,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	unit := &Unit{
		ID:            id,
		SourceRef:     sourceRef.String,
		Title:         title.String,
		Language:      languageCode,
		Audience:      audience.String,
		Fingerprint:   fingerprint.String,
		Stage:         Stage(stageStr),
		LastStage:     Stage(lastStage.String),
		Version:       version,
		CostUSD:       costUSD,
		ArtifactsJSON: artifacts.String,
		ErrorMessage:  errorMessage.String,
	}
	if abandoned.Valid {
		unit.Abandoned = abandoned.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		unit.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		unit.UpdatedAt = updated
	}
	return unit, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
