// Package generation holds the early pipeline stages: extracting and
// uniqueness-checking candidate source text, then generating the narration
// script through the provider gateway.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"guidora/internal/contentid"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/stage"
)

// Extractor moves units from Draft to Extracted. It reads the proposed
// source text, runs the uniqueness check, and registers the fingerprint.
// A duplicate is a hard reject, never retried.
type Extractor struct {
	engine *contentid.Engine
	store  *pipeline.Store
	logger *slog.Logger
}

// NewExtractor builds the extraction stage handler.
func NewExtractor(engine *contentid.Engine, store *pipeline.Store, logger *slog.Logger) *Extractor {
	return &Extractor{
		engine: engine,
		store:  store,
		logger: logging.NewComponentLogger(logger, "extractor"),
	}
}

// Target implements stage.Handler.
func (e *Extractor) Target() pipeline.Stage { return pipeline.StageExtracted }

// Prepare verifies the unit carries source text to fingerprint.
func (e *Extractor) Prepare(_ context.Context, unit *pipeline.Unit) error {
	text, err := SourceText(unit)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("unit %s has no source text", unit.ID)
	}
	return nil
}

// Execute fingerprints the source text and registers it in the corpus.
func (e *Extractor) Execute(ctx context.Context, unit *pipeline.Unit) error {
	text, err := SourceText(unit)
	if err != nil {
		return err
	}
	decision, err := e.engine.CheckAndRegister(ctx, unit.ID, text)
	if err != nil {
		return err
	}
	if !decision.Accepted {
		return &contentid.DuplicateError{
			NearestUnitID: decision.NearestUnitID,
			Similarity:    decision.Similarity,
		}
	}
	if err := e.store.SetFingerprint(ctx, unit.ID, decision.Signature.Hash); err != nil {
		return err
	}
	unit.Fingerprint = decision.Signature.Hash
	e.logger.Info("source accepted",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String("fingerprint", decision.Signature.Hash),
	)
	return nil
}

// HealthCheck implements stage.Handler.
func (e *Extractor) HealthCheck(_ context.Context) stage.Health {
	if e.engine == nil {
		return stage.Unhealthy("extractor", "fingerprint engine not configured")
	}
	return stage.Healthy("extractor")
}

// SourceText loads the unit's proposed source text. Inline text lives
// directly in the source artifact; otherwise the artifact is a file path.
func SourceText(unit *pipeline.Unit) (string, error) {
	refs, err := stage.Artifacts(unit)
	if err != nil {
		return "", err
	}
	ref := refs[stage.ArtifactSource]
	if ref == "" {
		return "", fmt.Errorf("unit %s missing source artifact", unit.ID)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("source artifact missing for unit %s: %w", unit.ID, err)
		}
		return "", fmt.Errorf("read source artifact for unit %s: %w", unit.ID, err)
	}
	return string(data), nil
}
