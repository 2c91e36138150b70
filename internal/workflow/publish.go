package workflow

import (
	"context"
	"fmt"

	"guidora/internal/notifications"
	"guidora/internal/pipeline"
)

// MarkPublished ingests a successful publish report from the external
// uploader, moving the unit from Scheduled to Published.
func MarkPublished(ctx context.Context, machine *pipeline.StateMachine, notifier notifications.Service, unitID, detail string) (int64, error) {
	unit, err := machine.Store().GetUnit(ctx, unitID)
	if err != nil {
		return 0, err
	}
	if unit.Stage != pipeline.StageScheduled {
		return 0, &pipeline.InvalidTransitionError{UnitID: unitID, From: unit.Stage, To: pipeline.StagePublished}
	}
	if detail == "" {
		detail = "publish confirmed"
	}
	version, err := machine.Transition(ctx, unitID, unit.Version, pipeline.StagePublished, detail)
	if err != nil {
		return 0, err
	}
	if notifier != nil {
		_ = notifier.NotifyPublished(ctx, unit.Title, unit.Language)
	}
	return version, nil
}

// MarkPublishFailed ingests a failed publish report, moving the unit from
// Scheduled to Failed and releasing its slot so another unit can take it.
func MarkPublishFailed(ctx context.Context, machine *pipeline.StateMachine, notifier notifications.Service, unitID, reason string) (int64, error) {
	unit, err := machine.Store().GetUnit(ctx, unitID)
	if err != nil {
		return 0, err
	}
	if unit.Stage != pipeline.StageScheduled {
		return 0, &pipeline.InvalidTransitionError{UnitID: unitID, From: unit.Stage, To: pipeline.StageFailed}
	}
	if reason == "" {
		reason = "publish failed"
	}
	version, err := machine.Fail(ctx, unitID, unit.Version, reason)
	if err != nil {
		return 0, err
	}
	if err := machine.Store().ReleaseSlot(ctx, unitID); err != nil {
		return version, fmt.Errorf("release slot for unit %s: %w", unitID, err)
	}
	if notifier != nil {
		_ = notifier.NotifyPublishFailed(ctx, unit.Title, reason)
	}
	return version, nil
}
