// Package scheduler assigns publish slots to units that finished production.
// Selection is weighted round-robin across languages so a backlog in one
// language cannot starve the others, and slot assignment respects daily
// per-language and global caps. Cadence runs are single-flight: overlapping
// invocations share one pass instead of double-assigning slots.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"guidora/internal/config"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
)

const (
	// defaultLookaheadDays bounds the slot search before a collision is surfaced.
	defaultLookaheadDays = 14

	cadenceName = "publish"
)

// Scheduler selects ready units and places them into publish slots.
type Scheduler struct {
	machine   *pipeline.StateMachine
	store     *pipeline.Store
	cfg       config.Scheduler
	languages []string
	logger    *slog.Logger
	now       func() time.Time
	cadence   singleflight.Group
	lookahead int
}

// Option customizes the scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a scheduler over the state machine. languages gives the
// priority order for batch selection.
func New(machine *pipeline.StateMachine, cfg config.Scheduler, languages []string, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		machine:   machine,
		store:     machine.Store(),
		cfg:       cfg,
		languages: languages,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		now:       time.Now,
		lookahead: defaultLookaheadDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextBatch returns up to maxSize ready-to-publish units in weighted
// round-robin order across languages. Each language contributes at most the
// daily per-language cap; surplus units wait for a later cadence run.
func (s *Scheduler) NextBatch(ctx context.Context, maxSize int) ([]*pipeline.Unit, error) {
	if maxSize <= 0 {
		return nil, nil
	}
	ready, err := s.store.UnitsByStage(ctx, pipeline.StageReadyToPublish)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list ready units: %w", err)
	}
	if len(ready) == 0 {
		return nil, nil
	}

	// UnitsByStage is oldest-first, so per-language queues stay age-ordered.
	queues := make(map[string][]*pipeline.Unit)
	for _, unit := range ready {
		queues[unit.Language] = append(queues[unit.Language], unit)
	}
	order := s.languageOrder(queues)

	perLanguage := s.cfg.DailyCapPerLanguage
	taken := make(map[string]int, len(order))
	batch := make([]*pipeline.Unit, 0, maxSize)
	for len(batch) < maxSize {
		progressed := false
		for _, lang := range order {
			if len(batch) >= maxSize {
				break
			}
			queue := queues[lang]
			if len(queue) == 0 {
				continue
			}
			if perLanguage > 0 && taken[lang] >= perLanguage {
				continue
			}
			batch = append(batch, queue[0])
			queues[lang] = queue[1:]
			taken[lang]++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return batch, nil
}

// languageOrder returns the configured priority order first, then any
// languages present in the backlog but absent from configuration.
func (s *Scheduler) languageOrder(queues map[string][]*pipeline.Unit) []string {
	order := make([]string, 0, len(queues))
	seen := make(map[string]bool, len(queues))
	for _, lang := range s.languages {
		if _, ok := queues[lang]; ok && !seen[lang] {
			order = append(order, lang)
			seen[lang] = true
		}
	}
	for lang := range queues {
		if !seen[lang] {
			order = append(order, lang)
			seen[lang] = true
		}
	}
	return order
}

// SchedulePublish assigns the next free slot to the unit and transitions it
// to Scheduled. Calling it again for an already-Scheduled unit returns the
// existing slot without claiming a new one.
func (s *Scheduler) SchedulePublish(ctx context.Context, unitID string) (*pipeline.Slot, error) {
	unit, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit.Stage == pipeline.StageScheduled {
		slot, err := s.store.SlotForUnit(ctx, unitID)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			return nil, fmt.Errorf("scheduler: unit %s is scheduled but holds no slot", unitID)
		}
		return slot, nil
	}
	if unit.Stage != pipeline.StageReadyToPublish {
		return nil, &pipeline.InvalidTransitionError{UnitID: unitID, From: unit.Stage, To: pipeline.StageScheduled}
	}

	slot, err := s.claimNextSlot(ctx, unit)
	if err != nil {
		return nil, err
	}

	evidence := fmt.Sprintf("slot %s %s", slot.Date, slot.Time)
	if _, err := s.machine.Transition(ctx, unitID, unit.Version, pipeline.StageScheduled, evidence); err != nil {
		if errors.Is(err, pipeline.ErrConflict) {
			// Lost a version race. If someone else scheduled it the claim
			// above was a no-op thanks to slot idempotence; re-read once.
			current, readErr := s.store.GetUnit(ctx, unitID)
			if readErr == nil && current.Stage == pipeline.StageScheduled {
				return s.store.SlotForUnit(ctx, unitID)
			}
		}
		if releaseErr := s.store.ReleaseSlot(ctx, unitID); releaseErr != nil {
			s.logger.Warn("release slot after failed transition",
				logging.String(logging.FieldUnitID, unitID),
				logging.Error(releaseErr),
			)
		}
		return nil, err
	}

	s.logger.Info("unit scheduled",
		logging.String(logging.FieldUnitID, unitID),
		logging.String(logging.FieldLanguage, unit.Language),
		logging.String(logging.FieldSlot, slot.Date+" "+slot.Time),
	)
	return slot, nil
}

// claimNextSlot walks day buckets forward until a slot is free under both
// caps, advancing past full days before giving up with a collision error.
func (s *Scheduler) claimNextSlot(ctx context.Context, unit *pipeline.Unit) (*pipeline.Slot, error) {
	now := s.now()
	for offset := 0; offset < s.lookahead; offset++ {
		day := now.AddDate(0, 0, offset)
		date := day.Format("2006-01-02")

		existing, err := s.store.SlotsForDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("scheduler: list slots for %s: %w", date, err)
		}
		if s.cfg.DailyCapGlobal > 0 && len(existing) >= s.cfg.DailyCapGlobal {
			continue
		}
		langCount := 0
		occupied := make(map[string]bool, len(existing))
		for _, slot := range existing {
			occupied[slot.Time] = true
			if slot.Language == unit.Language {
				langCount++
			}
		}
		if s.cfg.DailyCapPerLanguage > 0 && langCount >= s.cfg.DailyCapPerLanguage {
			continue
		}

		for _, slotTime := range s.cfg.SlotTimes {
			if occupied[slotTime] {
				continue
			}
			if offset == 0 {
				if at, err := (pipeline.Slot{Date: date, Time: slotTime}).At(now.Location()); err == nil && at.Before(now) {
					continue
				}
			}
			candidate := pipeline.Slot{
				Date:     date,
				Time:     slotTime,
				Language: unit.Language,
				UnitID:   unit.ID,
			}
			claimed, err := s.store.ClaimSlot(ctx, candidate)
			if err != nil {
				return nil, err
			}
			if claimed {
				return s.store.SlotForUnit(ctx, unit.ID)
			}
		}
	}
	return nil, &CollisionError{UnitID: unit.ID, Language: unit.Language, Days: s.lookahead}
}

// CadenceResult summarizes one scheduling pass.
type CadenceResult struct {
	Selected  int
	Scheduled int
	Deferred  int
}

// RunCadence performs one scheduling pass: select a batch and place each
// unit into a slot. Concurrent callers share a single in-flight pass.
func (s *Scheduler) RunCadence(ctx context.Context) (CadenceResult, error) {
	value, err, _ := s.cadence.Do(cadenceName, func() (any, error) {
		return s.runCadenceOnce(ctx)
	})
	if err != nil {
		return CadenceResult{}, err
	}
	return value.(CadenceResult), nil
}

func (s *Scheduler) runCadenceOnce(ctx context.Context) (CadenceResult, error) {
	batchSize := s.cfg.DailyCapGlobal
	if batchSize <= 0 {
		batchSize = len(s.cfg.SlotTimes)
	}
	batch, err := s.NextBatch(ctx, batchSize)
	if err != nil {
		return CadenceResult{}, err
	}

	result := CadenceResult{Selected: len(batch)}
	for _, unit := range batch {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if _, err := s.SchedulePublish(ctx, unit.ID); err != nil {
			if errors.Is(err, ErrScheduleCollision) {
				result.Deferred++
				s.logger.Warn("slot search exhausted, deferring unit",
					logging.String(logging.FieldUnitID, unit.ID),
					logging.String(logging.FieldLanguage, unit.Language),
				)
				continue
			}
			if errors.Is(err, pipeline.ErrConflict) {
				result.Deferred++
				continue
			}
			return result, err
		}
		result.Scheduled++
	}

	if err := s.store.RecordCadenceRun(ctx, cadenceName, s.now(), result.Scheduled); err != nil {
		s.logger.Warn("record cadence run", logging.Error(err))
	}
	if result.Selected > 0 {
		s.logger.Info("cadence pass complete",
			logging.Int("selected", result.Selected),
			logging.Int("scheduled", result.Scheduled),
			logging.Int("deferred", result.Deferred),
		)
	}
	return result, nil
}

// LastCadence reports the most recent recorded scheduling pass, or nil when
// none has run yet.
func (s *Scheduler) LastCadence(ctx context.Context) (*pipeline.CadenceState, error) {
	return s.store.CadenceRun(ctx, cadenceName)
}

// Status returns unit counts grouped by stage and language.
func (s *Scheduler) Status(ctx context.Context) ([]pipeline.StageCount, error) {
	return s.store.CountByStageAndLanguage(ctx)
}
