package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"guidora/internal/pipeline"
	"guidora/internal/testsupport"
)

func TestNewUnitStartsInDraft(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	unit, err := store.NewUnit(ctx, "ref-1", "A story about patience", "en", "universal")
	if err != nil {
		t.Fatalf("NewUnit failed: %v", err)
	}
	if unit.Stage != pipeline.StageDraft {
		t.Fatalf("expected draft stage, got %s", unit.Stage)
	}
	if unit.Version != 1 {
		t.Fatalf("expected version 1, got %d", unit.Version)
	}

	events, err := store.Events(ctx, unit.ID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 1 || events[0].Stage != pipeline.StageDraft {
		t.Fatalf("expected single draft event, got %#v", events)
	}
}

func TestApplyTransitionHappyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	ctx := context.Background()
	updated, err := store.ApplyTransition(ctx, unit.ID, unit.Version, pipeline.StageExtracted, "source accepted")
	if err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}
	if updated.Stage != pipeline.StageExtracted || updated.Version != 2 {
		t.Fatalf("unexpected state after transition: %s v%d", updated.Stage, updated.Version)
	}
}

func TestApplyTransitionStaleVersionConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	ctx := context.Background()
	if _, err := store.ApplyTransition(ctx, unit.ID, unit.Version, pipeline.StageExtracted, ""); err != nil {
		t.Fatalf("first transition failed: %v", err)
	}

	_, err := store.ApplyTransition(ctx, unit.ID, unit.Version, pipeline.StageGenerated, "")
	if !errors.Is(err, pipeline.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	var conflict *pipeline.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %T", err)
	}
	if conflict.ExpectedVersion != unit.Version {
		t.Fatalf("conflict carries wrong expected version: %d", conflict.ExpectedVersion)
	}

	// The losing writer must not have mutated state.
	current, err := store.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	if current.Stage != pipeline.StageExtracted || current.Version != 2 {
		t.Fatalf("conflict mutated state: %s v%d", current.Stage, current.Version)
	}
}

func TestApplyTransitionRejectsIllegalMove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	_, err := store.ApplyTransition(context.Background(), unit.ID, unit.Version, pipeline.StagePublished, "")
	if !errors.Is(err, pipeline.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	ctx := context.Background()
	path := []pipeline.Stage{
		pipeline.StageExtracted,
		pipeline.StageGenerated,
		pipeline.StageTranslated,
	}
	version := unit.Version
	for _, next := range path {
		updated, err := store.ApplyTransition(ctx, unit.ID, version, next, "")
		if err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		version = updated.Version
	}

	events, err := store.Events(ctx, unit.ID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	want := append([]pipeline.Stage{pipeline.StageDraft}, path...)
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, event := range events {
		if event.Stage != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], event.Stage)
		}
		if int64(i+1) != event.Version {
			t.Fatalf("event %d: expected version %d, got %d", i, i+1, event.Version)
		}
	}
}

func TestFailureRecordsLastStageAndRetryReturns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	ctx := context.Background()
	extracted, err := store.ApplyTransition(ctx, unit.ID, unit.Version, pipeline.StageExtracted, "")
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	failed, err := store.ApplyTransition(ctx, unit.ID, extracted.Version, pipeline.StageFailed, "provider blew up")
	if err != nil {
		t.Fatalf("fail transition failed: %v", err)
	}
	if failed.LastStage != pipeline.StageExtracted {
		t.Fatalf("expected last stage extracted, got %s", failed.LastStage)
	}
	if failed.ErrorMessage != "provider blew up" {
		t.Fatalf("expected error message recorded, got %q", failed.ErrorMessage)
	}

	retried, err := store.ApplyTransition(ctx, unit.ID, failed.Version, pipeline.StageExtracted, "operator retry")
	if err != nil {
		t.Fatalf("retry transition failed: %v", err)
	}
	if retried.Stage != pipeline.StageExtracted {
		t.Fatalf("expected unit back in extracted, got %s", retried.Stage)
	}
	if retried.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", retried.ErrorMessage)
	}
}

func TestAbandonRequiresFailedStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	ctx := context.Background()
	if err := store.Abandon(ctx, unit.ID); err == nil {
		t.Fatal("expected abandon of non-failed unit to error")
	}

	if _, err := store.ApplyTransition(ctx, unit.ID, unit.Version, pipeline.StageFailed, "bad source"); err != nil {
		t.Fatalf("fail transition failed: %v", err)
	}
	if err := store.Abandon(ctx, unit.ID); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	// An abandoned failure is terminal: retry attempts are rejected.
	current, err := store.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	if _, err := store.ApplyTransition(ctx, unit.ID, current.Version, current.LastStage, "retry"); err == nil {
		t.Fatal("expected retry of abandoned unit to be rejected")
	}
}

func TestSetFingerprintIsWriteOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	unit := testsupport.NewUnit(t, store, "Patience", "en", "universal")

	ctx := context.Background()
	if err := store.SetFingerprint(ctx, unit.ID, "abc123"); err != nil {
		t.Fatalf("SetFingerprint failed: %v", err)
	}
	if err := store.SetFingerprint(ctx, unit.ID, "def456"); err == nil {
		t.Fatal("expected second fingerprint write to be rejected")
	}
}
