package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"guidora/internal/config"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/scheduler"
	"guidora/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	store   *pipeline.Store
	machine *pipeline.StateMachine
	sched   *scheduler.Scheduler
}

func newFixture(t *testing.T, clock func() time.Time, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	machine := pipeline.NewStateMachine(store, logging.NewNop())
	sched := scheduler.New(machine, cfg.Scheduler, cfg.Pipeline.Languages, logging.NewNop(), scheduler.WithClock(clock))
	return &fixture{cfg: cfg, store: store, machine: machine, sched: sched}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// readyUnit creates a unit and walks it forward to ReadyToPublish.
func readyUnit(t *testing.T, f *fixture, title, lang string) *pipeline.Unit {
	t.Helper()

	unit := testsupport.NewUnit(t, f.store, title, lang, "universal")
	advanceTo(t, f.machine, unit, pipeline.StageReadyToPublish)
	return unit
}

func advanceTo(t *testing.T, machine *pipeline.StateMachine, unit *pipeline.Unit, target pipeline.Stage) {
	t.Helper()

	ctx := context.Background()
	passed := false
	for _, stage := range pipeline.OrderedStages() {
		if stage == unit.Stage {
			passed = true
			continue
		}
		if !passed {
			continue
		}
		version, err := machine.Transition(ctx, unit.ID, unit.Version, stage, "test setup")
		if err != nil {
			t.Fatalf("advance %s to %s: %v", unit.ID, stage, err)
		}
		unit.Stage = stage
		unit.Version = version
		if stage == target {
			return
		}
	}
	t.Fatalf("stage %s not reachable from %s", target, unit.Stage)
}

func TestNextBatchInterleavesLanguagesUnderCap(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC))
	f := newFixture(t, clock,
		testsupport.WithLanguages("en", "es", "fr", "ur"),
		testsupport.WithSchedulerCaps(2, 8),
	)

	counts := map[string]int{"en": 4, "es": 3, "fr": 2, "ur": 1}
	for _, lang := range []string{"en", "es", "fr", "ur"} {
		for i := 0; i < counts[lang]; i++ {
			readyUnit(t, f, lang+" unit", lang)
		}
	}

	batch, err := f.sched.NextBatch(ctx, 8)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}

	// Two rounds of round-robin: every language appears before any repeats,
	// and no language exceeds the per-language cap even with backlog left.
	wantLangs := []string{"en", "es", "fr", "ur", "en", "es", "fr"}
	if len(batch) != len(wantLangs) {
		t.Fatalf("batch size = %d, want %d", len(batch), len(wantLangs))
	}
	taken := make(map[string]int)
	for i, unit := range batch {
		if unit.Language != wantLangs[i] {
			t.Fatalf("batch[%d].Language = %s, want %s", i, unit.Language, wantLangs[i])
		}
		taken[unit.Language]++
	}
	if taken["en"] != 2 {
		t.Fatalf("en selections = %d, want cap of 2 despite backlog of 4", taken["en"])
	}
}

func TestNextBatchRespectsMaxSize(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC))
	f := newFixture(t, clock, testsupport.WithLanguages("en"), testsupport.WithSchedulerCaps(0, 0))

	for i := 0; i < 5; i++ {
		readyUnit(t, f, "unit", "en")
	}

	batch, err := f.sched.NextBatch(ctx, 3)
	if err != nil {
		t.Fatalf("NextBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
}

func TestSchedulePublishClaimsEarliestFreeSlot(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	f := newFixture(t, clock, testsupport.WithSchedulerCaps(0, 2))
	f.cfg.Scheduler.SlotTimes = []string{"10:00", "14:00"}
	f.sched = scheduler.New(f.machine, f.cfg.Scheduler, f.cfg.Pipeline.Languages, logging.NewNop(), scheduler.WithClock(clock))

	first := readyUnit(t, f, "first", "en")
	second := readyUnit(t, f, "second", "en")
	third := readyUnit(t, f, "third", "en")

	slot, err := f.sched.SchedulePublish(ctx, first.ID)
	if err != nil {
		t.Fatalf("SchedulePublish first: %v", err)
	}
	if slot.Date != "2026-04-01" || slot.Time != "10:00" {
		t.Fatalf("first slot = %s %s, want 2026-04-01 10:00", slot.Date, slot.Time)
	}

	slot, err = f.sched.SchedulePublish(ctx, second.ID)
	if err != nil {
		t.Fatalf("SchedulePublish second: %v", err)
	}
	if slot.Date != "2026-04-01" || slot.Time != "14:00" {
		t.Fatalf("second slot = %s %s, want 2026-04-01 14:00", slot.Date, slot.Time)
	}

	// The global daily cap pushes the third unit to the next day.
	slot, err = f.sched.SchedulePublish(ctx, third.ID)
	if err != nil {
		t.Fatalf("SchedulePublish third: %v", err)
	}
	if slot.Date != "2026-04-02" || slot.Time != "10:00" {
		t.Fatalf("third slot = %s %s, want 2026-04-02 10:00", slot.Date, slot.Time)
	}

	state, err := f.machine.Query(ctx, first.ID)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if state.Unit.Stage != pipeline.StageScheduled {
		t.Fatalf("stage = %s after scheduling, want scheduled", state.Unit.Stage)
	}
}

func TestSchedulePublishSkipsElapsedSlotTimes(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	f := newFixture(t, clock, testsupport.WithSchedulerCaps(0, 0))
	f.cfg.Scheduler.SlotTimes = []string{"10:00", "14:00"}
	f.sched = scheduler.New(f.machine, f.cfg.Scheduler, f.cfg.Pipeline.Languages, logging.NewNop(), scheduler.WithClock(clock))

	unit := readyUnit(t, f, "late riser", "en")
	slot, err := f.sched.SchedulePublish(ctx, unit.ID)
	if err != nil {
		t.Fatalf("SchedulePublish: %v", err)
	}
	if slot.Date != "2026-04-01" || slot.Time != "14:00" {
		t.Fatalf("slot = %s %s, want 2026-04-01 14:00 (10:00 already passed)", slot.Date, slot.Time)
	}
}

func TestSchedulePublishIsIdempotentForScheduledUnit(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC))
	f := newFixture(t, clock, testsupport.WithSchedulerCaps(0, 0))

	unit := readyUnit(t, f, "once", "en")
	first, err := f.sched.SchedulePublish(ctx, unit.ID)
	if err != nil {
		t.Fatalf("SchedulePublish: %v", err)
	}

	again, err := f.sched.SchedulePublish(ctx, unit.ID)
	if err != nil {
		t.Fatalf("repeat SchedulePublish: %v", err)
	}
	if again.Date != first.Date || again.Time != first.Time {
		t.Fatalf("repeat returned %s %s, want original %s %s", again.Date, again.Time, first.Date, first.Time)
	}

	slots, err := f.store.SlotsForDate(ctx, first.Date)
	if err != nil {
		t.Fatalf("SlotsForDate: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("slots on %s = %d, want 1", first.Date, len(slots))
	}
}

func TestSchedulePublishRejectsUnreadyUnit(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC))
	f := newFixture(t, clock)

	unit := testsupport.NewUnit(t, f.store, "still drafting", "en", "universal")
	_, err := f.sched.SchedulePublish(ctx, unit.ID)
	var invalid *pipeline.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
	if invalid.From != pipeline.StageDraft {
		t.Fatalf("invalid.From = %s, want draft", invalid.From)
	}
}

func TestSchedulePublishSurfacesCollisionWhenLookaheadFull(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC))
	f := newFixture(t, clock, testsupport.WithSchedulerCaps(1, 0))
	f.cfg.Scheduler.SlotTimes = []string{"10:00"}
	f.sched = scheduler.New(f.machine, f.cfg.Scheduler, f.cfg.Pipeline.Languages, logging.NewNop(), scheduler.WithClock(clock))

	// One slot per day for the language: fourteen units fill the lookahead
	// window, the fifteenth has nowhere to go.
	for i := 0; i < 14; i++ {
		unit := readyUnit(t, f, "filler", "en")
		if _, err := f.sched.SchedulePublish(ctx, unit.ID); err != nil {
			t.Fatalf("SchedulePublish filler %d: %v", i, err)
		}
	}

	overflow := readyUnit(t, f, "overflow", "en")
	_, err := f.sched.SchedulePublish(ctx, overflow.ID)
	if !errors.Is(err, scheduler.ErrScheduleCollision) {
		t.Fatalf("err = %v, want ErrScheduleCollision", err)
	}
	var collision *scheduler.CollisionError
	if !errors.As(err, &collision) {
		t.Fatalf("err = %T, want *CollisionError", err)
	}
	if collision.Days != 14 {
		t.Fatalf("collision.Days = %d, want 14", collision.Days)
	}

	state, err := f.machine.Query(ctx, overflow.ID)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if state.Unit.Stage != pipeline.StageReadyToPublish {
		t.Fatalf("stage = %s after collision, want ready_to_publish", state.Unit.Stage)
	}
}

func TestRunCadenceSchedulesBatchAndRecordsRun(t *testing.T) {
	ctx := context.Background()
	clock := fixedClock(time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC))
	f := newFixture(t, clock,
		testsupport.WithLanguages("en", "es"),
		testsupport.WithSchedulerCaps(2, 4),
	)

	ready := []*pipeline.Unit{
		readyUnit(t, f, "one", "en"),
		readyUnit(t, f, "two", "en"),
		readyUnit(t, f, "tres", "es"),
	}
	testsupport.NewUnit(t, f.store, "not ready", "en", "universal")

	result, err := f.sched.RunCadence(ctx)
	if err != nil {
		t.Fatalf("RunCadence: %v", err)
	}
	if result.Selected != 3 || result.Scheduled != 3 || result.Deferred != 0 {
		t.Fatalf("result = %+v, want 3 selected, 3 scheduled, 0 deferred", result)
	}

	for _, unit := range ready {
		current, err := f.store.GetUnit(ctx, unit.ID)
		if err != nil {
			t.Fatalf("GetUnit: %v", err)
		}
		if current.Stage != pipeline.StageScheduled {
			t.Fatalf("unit %s stage = %s, want scheduled", unit.ID, current.Stage)
		}
	}

	last, err := f.sched.LastCadence(ctx)
	if err != nil {
		t.Fatalf("LastCadence: %v", err)
	}
	if last == nil {
		t.Fatal("LastCadence = nil after a pass")
	}
	if last.UnitsProcessed != 3 {
		t.Fatalf("UnitsProcessed = %d, want 3", last.UnitsProcessed)
	}
}
