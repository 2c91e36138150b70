package workflow_test

import (
	"context"
	"errors"
	"testing"

	"guidora/internal/pipeline"
	"guidora/internal/testsupport"
	"guidora/internal/workflow"
)

func TestMarkPublishedCompletesScheduledUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	unit := testsupport.NewUnit(t, f.store, "sermon on patience", "en", "universal")
	advanceTo(t, f.machine, unit, pipeline.StageScheduled)

	version, err := workflow.MarkPublished(ctx, f.machine, f.notifier, unit.ID, "video live")
	if err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	if version != unit.Version+1 {
		t.Fatalf("version = %d, want %d", version, unit.Version+1)
	}

	current, err := f.store.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if current.Stage != pipeline.StagePublished {
		t.Fatalf("stage = %s, want published", current.Stage)
	}
	if len(f.notifier.published) != 1 || f.notifier.published[0] != "sermon on patience" {
		t.Fatalf("published notifications = %v, want the unit title", f.notifier.published)
	}
}

func TestMarkPublishedRejectsUnscheduledUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	unit := testsupport.NewUnit(t, f.store, "early", "en", "universal")
	_, err := workflow.MarkPublished(ctx, f.machine, f.notifier, unit.ID, "")
	var invalid *pipeline.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestMarkPublishFailedReleasesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	unit := testsupport.NewUnit(t, f.store, "flaky upload", "en", "universal")
	advanceTo(t, f.machine, unit, pipeline.StageReadyToPublish)

	slot, err := f.sched.SchedulePublish(ctx, unit.ID)
	if err != nil {
		t.Fatalf("SchedulePublish: %v", err)
	}

	if _, err := workflow.MarkPublishFailed(ctx, f.machine, f.notifier, unit.ID, "upload quota hit"); err != nil {
		t.Fatalf("MarkPublishFailed: %v", err)
	}

	current, err := f.store.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if current.Stage != pipeline.StageFailed {
		t.Fatalf("stage = %s, want failed", current.Stage)
	}
	if current.LastStage != pipeline.StageScheduled {
		t.Fatalf("last stage = %s, want scheduled", current.LastStage)
	}

	released, err := f.store.SlotForUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("SlotForUnit: %v", err)
	}
	if released != nil {
		t.Fatalf("slot %s %s still held after publish failure", slot.Date, slot.Time)
	}
	if len(f.notifier.publishFailed) != 1 {
		t.Fatalf("publish-failed notifications = %d, want 1", len(f.notifier.publishFailed))
	}
}
