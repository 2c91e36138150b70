// Package translation moves units from Generated to Translated. Scripts
// already written in the base language pass through; everything else is
// translated by the gateway's text capability.
package translation

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

// baseLanguage is the language scripts are generated in before translation.
const baseLanguage = "en"

// Translator implements the translation stage handler.
type Translator struct {
	gw           *gateway.Gateway
	store        *pipeline.Store
	artifactsDir string
	logger       *slog.Logger
}

// NewTranslator builds the translation stage handler.
func NewTranslator(gw *gateway.Gateway, store *pipeline.Store, artifactsDir string, logger *slog.Logger) *Translator {
	return &Translator{
		gw:           gw,
		store:        store,
		artifactsDir: artifactsDir,
		logger:       logging.NewComponentLogger(logger, "translator"),
	}
}

// Target implements stage.Handler.
func (t *Translator) Target() pipeline.Stage { return pipeline.StageTranslated }

// Prepare verifies the script artifact exists.
func (t *Translator) Prepare(_ context.Context, unit *pipeline.Unit) error {
	_, err := scriptText(unit)
	return err
}

// Execute produces the translated narration, or reuses the script when the
// unit is already in the base language.
func (t *Translator) Execute(ctx context.Context, unit *pipeline.Unit) error {
	script, err := scriptText(unit)
	if err != nil {
		return err
	}

	var (
		translated string
		provider   string
		cost       float64
	)
	if language.Normalize(unit.Language) == baseLanguage {
		translated = script
	} else {
		result, err := t.gw.Invoke(ctx, gateway.Request{
			Capability: gateway.CapabilityText,
			Prompt:     translationPrompt(unit.Language, script),
			Language:   unit.Language,
			Audience:   unit.Audience,
			UnitID:     unit.ID,
		})
		if err != nil {
			return err
		}
		translated = result.Text
		provider = result.Provider
		cost = result.CostUSD
	}

	path := filepath.Join(t.artifactsDir, unit.ID, "translation.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir for unit %s: %w", unit.ID, err)
	}
	if err := os.WriteFile(path, []byte(translated), 0o644); err != nil {
		return fmt.Errorf("write translation for unit %s: %w", unit.ID, err)
	}

	encoded, _, err := stage.SetArtifact(unit, stage.ArtifactTranslation, path)
	if err != nil {
		return err
	}
	if err := t.store.SetArtifacts(ctx, unit.ID, encoded); err != nil {
		return err
	}
	unit.ArtifactsJSON = encoded

	if cost > 0 {
		if err := t.store.AddCost(ctx, unit.ID, cost); err != nil {
			return err
		}
		unit.CostUSD += cost
	}

	t.logger.Info("translation ready",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldLanguage, unit.Language),
		logging.String(logging.FieldProvider, provider),
		logging.Float64(logging.FieldCostUSD, cost),
	)
	return nil
}

// HealthCheck implements stage.Handler.
func (t *Translator) HealthCheck(_ context.Context) stage.Health {
	if len(t.gw.Providers(gateway.CapabilityText)) == 0 {
		return stage.Unhealthy("translator", "no text providers configured")
	}
	return stage.Healthy("translator")
}

func translationPrompt(lang, script string) string {
	return fmt.Sprintf(
		"Translate the following narration script into %s. Preserve the tone and pacing; return only the translated text.\n\n%s",
		language.Display(lang), script,
	)
}

func scriptText(unit *pipeline.Unit) (string, error) {
	refs, err := stage.Artifacts(unit)
	if err != nil {
		return "", err
	}
	ref := refs[stage.ArtifactScript]
	if ref == "" {
		return "", fmt.Errorf("unit %s missing script artifact", unit.ID)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read script for unit %s: %w", unit.ID, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("unit %s script is empty", unit.ID)
	}
	return string(data), nil
}
