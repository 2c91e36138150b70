package pipeline

import (
	"strings"
	"time"
)

// Stage represents one step of the content production lifecycle.
type Stage string

const (
	StageDraft            Stage = "draft"
	StageExtracted        Stage = "extracted"
	StageGenerated        Stage = "generated"
	StageTranslated       Stage = "translated"
	StageSynthesizedAudio Stage = "synthesized_audio"
	StageVideoReady       Stage = "video_ready"
	StageThumbnailReady   Stage = "thumbnail_ready"
	StageReadyToPublish   Stage = "ready_to_publish"
	StageScheduled        Stage = "scheduled"
	StagePublished        Stage = "published"
	StageFailed           Stage = "failed"
)

// orderedStages lists the forward progression. Failed sits outside the
// order: reachable from any non-terminal stage, left via operator retry.
var orderedStages = []Stage{
	StageDraft,
	StageExtracted,
	StageGenerated,
	StageTranslated,
	StageSynthesizedAudio,
	StageVideoReady,
	StageThumbnailReady,
	StageReadyToPublish,
	StageScheduled,
	StagePublished,
}

var stageIndex = func() map[Stage]int {
	index := make(map[Stage]int, len(orderedStages))
	for i, stage := range orderedStages {
		index[stage] = i
	}
	return index
}()

// OrderedStages returns the forward stage progression.
func OrderedStages() []Stage {
	cp := make([]Stage, len(orderedStages))
	copy(cp, orderedStages)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == StageFailed {
		return StageFailed, true
	}
	_, ok := stageIndex[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions are legal from the stage.
// Failed is terminal only once the operator has abandoned the unit, which is
// tracked on the unit itself.
func (s Stage) IsTerminal() bool {
	return s == StagePublished
}

// CanTransition reports whether moving from the current stage (with the
// recorded last successful stage) to next is legal.
func CanTransition(current, last, next Stage) bool {
	if current == StagePublished {
		return false
	}
	if next == StageFailed {
		return current != StageFailed
	}
	if current == StageFailed {
		// Operator retry returns the unit to its last successful stage.
		return next == last
	}
	currentIdx, ok := stageIndex[current]
	if !ok {
		return false
	}
	nextIdx, ok := stageIndex[next]
	if !ok {
		return false
	}
	return nextIdx == currentIdx+1
}

// Unit represents one piece of generated content tracked through the pipeline.
type Unit struct {
	ID            string
	SourceRef     string
	Title         string
	Language      string
	Audience      string
	Fingerprint   string
	Stage         Stage
	LastStage     Stage // last successful stage before a failure
	Version       int64
	CostUSD       float64
	ArtifactsJSON string
	ErrorMessage  string
	Abandoned     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsProcessable reports whether the workflow should pick the unit up.
func (u Unit) IsProcessable() bool {
	switch u.Stage {
	case StagePublished, StageFailed, StageScheduled:
		return false
	default:
		return true
	}
}

// Event is one immutable entry in a unit's history.
type Event struct {
	ID        int64
	UnitID    string
	Stage     Stage
	Version   int64
	Evidence  string
	CreatedAt time.Time
}

// FingerprintRecord is a registered uniqueness signature.
type FingerprintRecord struct {
	Hash       string
	UnitID     string
	Normalized string
	CreatedAt  time.Time
}

// Slot is a reserved (date, time, language) bucket holding one unit.
type Slot struct {
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	Language  string
	UnitID    string
	CreatedAt time.Time
}

// At returns the slot's wall-clock moment in the given location.
func (s Slot) At(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.Time, loc)
}

// StageCount aggregates units per stage and language for status reporting.
type StageCount struct {
	Stage    Stage
	Language string
	Count    int
}
