package contentid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/textutil"
)

// DefaultThreshold is the similarity at or above which a candidate is
// rejected as a duplicate.
const DefaultThreshold = 0.85

// Decision is the outcome of a CheckAndRegister call.
type Decision struct {
	Accepted      bool
	Signature     Signature
	NearestUnitID string
	Similarity    float64
}

// Engine owns the fingerprint corpus. It is the sole writer of fingerprint
// records.
type Engine struct {
	store     *pipeline.Store
	threshold float64
	logger    *slog.Logger

	// mu serializes check-and-register so the no-duplicate decision and the
	// insertion are one atomic step.
	mu sync.Mutex
}

// NewEngine builds an engine over the shared store. A non-positive
// threshold falls back to DefaultThreshold.
func NewEngine(store *pipeline.Store, threshold float64, logger *slog.Logger) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Engine{
		store:     store,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "contentid"),
	}
}

// CheckAndRegister fingerprints the text, compares it against every live
// corpus signature, and registers it for the unit when no near-duplicate
// exists. Re-registering the same normalized text for the same unit is
// idempotent and does not create a second corpus entry.
func (e *Engine) CheckAndRegister(ctx context.Context, unitID, text string) (Decision, error) {
	signature := ComputeFingerprint(text)
	if signature.Normalized == "" {
		return Decision{}, fmt.Errorf("fingerprint: text produced no content tokens")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, err := e.store.FingerprintByHash(ctx, signature.Hash); err != nil {
		return Decision{}, err
	} else if existing != nil {
		if existing.UnitID == unitID {
			return Decision{Accepted: true, Signature: signature}, nil
		}
		e.logDuplicate(unitID, existing.UnitID, 1)
		return Decision{Signature: signature, NearestUnitID: existing.UnitID, Similarity: 1}, nil
	}

	records, err := e.store.ListFingerprints(ctx)
	if err != nil {
		return Decision{}, err
	}

	candidate := textutil.NewFingerprint(signature.Normalized)
	var (
		nearestID  string
		nearestSim float64
	)
	for _, record := range records {
		sim := similarity(candidate, signature.Normalized, record.Normalized)
		if sim > nearestSim {
			nearestSim = sim
			nearestID = record.UnitID
		}
	}

	if nearestSim >= e.threshold {
		e.logDuplicate(unitID, nearestID, nearestSim)
		return Decision{Signature: signature, NearestUnitID: nearestID, Similarity: nearestSim}, nil
	}

	record := pipeline.FingerprintRecord{
		Hash:       signature.Hash,
		UnitID:     unitID,
		Normalized: signature.Normalized,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.InsertFingerprint(ctx, record); err != nil {
		return Decision{}, err
	}
	return Decision{Accepted: true, Signature: signature}, nil
}

// Threshold returns the configured duplicate threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

func (e *Engine) logDuplicate(unitID, nearestID string, sim float64) {
	e.logger.Warn("candidate rejected as near-duplicate",
		logging.String(logging.FieldUnitID, unitID),
		logging.String("nearest_unit_id", nearestID),
		logging.Float64(logging.FieldSimilarity, sim),
	)
}

func similarity(candidate *textutil.Fingerprint, candidateNorm, recordNorm string) float64 {
	if candidateNorm == recordNorm {
		return 1
	}
	cos := textutil.CosineSimilarity(candidate, textutil.NewFingerprint(recordNorm))
	dice := textutil.BigramDice(candidateNorm, recordNorm)
	if dice > cos {
		return dice
	}
	return cos
}
