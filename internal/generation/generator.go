package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"guidora/internal/gateway"
	"guidora/internal/language"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/stage"
)

// Generator moves units from Extracted to Generated by asking the gateway's
// text capability for a narration script.
type Generator struct {
	gw           *gateway.Gateway
	store        *pipeline.Store
	artifactsDir string
	logger       *slog.Logger
}

// NewGenerator builds the script generation stage handler.
func NewGenerator(gw *gateway.Gateway, store *pipeline.Store, artifactsDir string, logger *slog.Logger) *Generator {
	return &Generator{
		gw:           gw,
		store:        store,
		artifactsDir: artifactsDir,
		logger:       logging.NewComponentLogger(logger, "generator"),
	}
}

// Target implements stage.Handler.
func (g *Generator) Target() pipeline.Stage { return pipeline.StageGenerated }

// Prepare checks the source text and artifact directory are reachable.
func (g *Generator) Prepare(_ context.Context, unit *pipeline.Unit) error {
	if _, err := SourceText(unit); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(g.artifactsDir, unit.ID), 0o755)
}

// Execute generates the narration script and stores it as an artifact.
func (g *Generator) Execute(ctx context.Context, unit *pipeline.Unit) error {
	source, err := SourceText(unit)
	if err != nil {
		return err
	}

	result, err := g.gw.Invoke(ctx, gateway.Request{
		Capability: gateway.CapabilityText,
		Prompt:     scriptPrompt(unit, source),
		Language:   unit.Language,
		Audience:   unit.Audience,
		UnitID:     unit.ID,
	})
	if err != nil {
		return err
	}

	scriptPath := filepath.Join(g.artifactsDir, unit.ID, "script.txt")
	if err := os.WriteFile(scriptPath, []byte(result.Text), 0o644); err != nil {
		return fmt.Errorf("write script for unit %s: %w", unit.ID, err)
	}

	encoded, _, err := stage.SetArtifact(unit, stage.ArtifactScript, scriptPath)
	if err != nil {
		return err
	}
	if err := g.store.SetArtifacts(ctx, unit.ID, encoded); err != nil {
		return err
	}
	unit.ArtifactsJSON = encoded

	if result.CostUSD > 0 {
		if err := g.store.AddCost(ctx, unit.ID, result.CostUSD); err != nil {
			return err
		}
		unit.CostUSD += result.CostUSD
	}

	g.logger.Info("script generated",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldProvider, result.Provider),
		logging.Float64(logging.FieldCostUSD, result.CostUSD),
	)
	return nil
}

// HealthCheck implements stage.Handler.
func (g *Generator) HealthCheck(_ context.Context) stage.Health {
	if len(g.gw.Providers(gateway.CapabilityText)) == 0 {
		return stage.Unhealthy("generator", "no text providers configured")
	}
	return stage.Healthy("generator")
}

func scriptPrompt(unit *pipeline.Unit, source string) string {
	return fmt.Sprintf(
		"Write a short narration script in %s for the %s audience, based on the following source material. Keep the tone warm and clear.\n\nTitle: %s\n\n%s",
		language.Display(unit.Language), unit.Audience, unit.Title, source,
	)
}
