// Package speech moves units from Translated to SynthesizedAudio by
// narrating the translated script through the gateway's speech capability.
package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"guidora/internal/gateway"
	"guidora/internal/language"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/stage"
)

// audioMinuteCostHintUSD floors the gateway's cost estimate per narrated
// minute. Speech pricing is per character; at typical narration pace one
// minute is roughly a thousand characters, so this stays close to the
// per-1k rates while guarding against providers that underestimate.
const audioMinuteCostHintUSD = 0.02

// Synthesizer implements the speech synthesis stage handler.
type Synthesizer struct {
	gw           *gateway.Gateway
	store        *pipeline.Store
	artifactsDir string
	logger       *slog.Logger
}

// NewSynthesizer builds the speech synthesis stage handler.
func NewSynthesizer(gw *gateway.Gateway, store *pipeline.Store, artifactsDir string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		gw:           gw,
		store:        store,
		artifactsDir: artifactsDir,
		logger:       logging.NewComponentLogger(logger, "speech"),
	}
}

// Target implements stage.Handler.
func (s *Synthesizer) Target() pipeline.Stage { return pipeline.StageSynthesizedAudio }

// Prepare verifies the translated narration exists.
func (s *Synthesizer) Prepare(_ context.Context, unit *pipeline.Unit) error {
	_, err := narrationText(unit)
	return err
}

// Execute synthesizes the narration audio and stores it as an artifact.
func (s *Synthesizer) Execute(ctx context.Context, unit *pipeline.Unit) error {
	narration, err := narrationText(unit)
	if err != nil {
		return err
	}

	minutes := EstimateMinutes(unit.Language, narration)
	result, err := s.gw.Invoke(ctx, gateway.Request{
		Capability: gateway.CapabilitySpeech,
		Prompt:     narration,
		Language:   unit.Language,
		Audience:   unit.Audience,
		CostHint:   minutes * audioMinuteCostHintUSD,
		UnitID:     unit.ID,
	})
	if err != nil {
		return err
	}

	audioPath := filepath.Join(s.artifactsDir, unit.ID, "narration.mp3")
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return fmt.Errorf("create artifact dir for unit %s: %w", unit.ID, err)
	}
	if err := os.WriteFile(audioPath, result.Audio, 0o644); err != nil {
		return fmt.Errorf("write narration audio for unit %s: %w", unit.ID, err)
	}

	encoded, _, err := stage.SetArtifact(unit, stage.ArtifactAudio, audioPath)
	if err != nil {
		return err
	}
	if err := s.store.SetArtifacts(ctx, unit.ID, encoded); err != nil {
		return err
	}
	unit.ArtifactsJSON = encoded

	if result.CostUSD > 0 {
		if err := s.store.AddCost(ctx, unit.ID, result.CostUSD); err != nil {
			return err
		}
		unit.CostUSD += result.CostUSD
	}

	s.logger.Info("narration synthesized",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldProvider, result.Provider),
		logging.Float64("estimated_minutes", minutes),
		logging.Float64(logging.FieldCostUSD, result.CostUSD),
	)
	return nil
}

// HealthCheck implements stage.Handler.
func (s *Synthesizer) HealthCheck(_ context.Context) stage.Health {
	if len(s.gw.Providers(gateway.CapabilitySpeech)) == 0 {
		return stage.Unhealthy("speech", "no speech providers configured")
	}
	return stage.Healthy("speech")
}

// EstimateMinutes predicts the narrated duration from the language's
// words-per-minute pace.
func EstimateMinutes(lang, text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return float64(words) / float64(language.WordsPerMinute(lang))
}

func narrationText(unit *pipeline.Unit) (string, error) {
	refs, err := stage.Artifacts(unit)
	if err != nil {
		return "", err
	}
	ref := refs[stage.ArtifactTranslation]
	if ref == "" {
		return "", fmt.Errorf("unit %s missing translation artifact", unit.ID)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read translation for unit %s: %w", unit.ID, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("unit %s translation is empty", unit.ID)
	}
	return string(data), nil
}
