package translation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"guidora/internal/config"
	"guidora/internal/gateway"
	"guidora/internal/ledger"
	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/stage"
	"guidora/internal/testsupport"
	"guidora/internal/translation"
)

type echoProvider struct {
	prefix string
	calls  int
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) EstimateCost(gateway.Request) float64 { return 0.001 }

func (p *echoProvider) Invoke(_ context.Context, req gateway.Request) (gateway.Result, error) {
	p.calls++
	return gateway.Result{Text: p.prefix + req.Language, CostUSD: 0.001}, nil
}

func newTranslatorFixture(t *testing.T) (*translation.Translator, *echoProvider, *pipeline.Store, *config.Config) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	costs := ledger.New(store, cfg.Budget, logging.NewNop())
	provider := &echoProvider{prefix: "translated into "}
	gw := gateway.New(costs, logging.NewNop())
	gw.Register(gateway.CapabilityText, provider, config.Provider{
		Enabled:     true,
		Priority:    1,
		MaxAttempts: 1,
		Concurrency: 1,
	})

	return translation.NewTranslator(gw, store, cfg.Paths.ArtifactsDir, logging.NewNop()), provider, store, cfg
}

// scriptedUnit creates a unit in the given language with its script artifact
// on disk.
func scriptedUnit(t *testing.T, store *pipeline.Store, cfg *config.Config, lang, script string) *pipeline.Unit {
	t.Helper()

	ctx := context.Background()
	unit := testsupport.NewUnit(t, store, "scripted", lang, "universal")
	path := filepath.Join(cfg.Paths.ArtifactsDir, unit.ID, "script.txt")
	testsupport.WriteFile(t, path, []byte(script))

	encoded, _, err := stage.SetArtifact(unit, stage.ArtifactScript, path)
	if err != nil {
		t.Fatalf("SetArtifact: %v", err)
	}
	if err := store.SetArtifacts(ctx, unit.ID, encoded); err != nil {
		t.Fatalf("SetArtifacts: %v", err)
	}
	unit.ArtifactsJSON = encoded
	return unit
}

func TestBaseLanguagePassesThroughWithoutProviderCall(t *testing.T) {
	ctx := context.Background()
	translator, provider, store, cfg := newTranslatorFixture(t)

	unit := scriptedUnit(t, store, cfg, "en", "an english narration script")
	if err := translator.Execute(ctx, unit); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider calls = %d for base language, want 0", provider.calls)
	}

	refs, err := stage.Artifacts(unit)
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	data, err := os.ReadFile(refs[stage.ArtifactTranslation])
	if err != nil {
		t.Fatalf("read translation: %v", err)
	}
	if string(data) != "an english narration script" {
		t.Fatalf("translation = %q, want verbatim script", data)
	}

	stored, err := store.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if stored.CostUSD != 0 {
		t.Fatalf("cost = %v for passthrough, want 0", stored.CostUSD)
	}
}

func TestOtherLanguagesGoThroughGateway(t *testing.T) {
	ctx := context.Background()
	translator, provider, store, cfg := newTranslatorFixture(t)

	unit := scriptedUnit(t, store, cfg, "ur", "an english narration script")
	if err := translator.Execute(ctx, unit); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}

	refs, err := stage.Artifacts(unit)
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	data, err := os.ReadFile(refs[stage.ArtifactTranslation])
	if err != nil {
		t.Fatalf("read translation: %v", err)
	}
	if string(data) != "translated into ur" {
		t.Fatalf("translation = %q", data)
	}

	stored, err := store.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if stored.CostUSD != 0.001 {
		t.Fatalf("cost = %v, want 0.001", stored.CostUSD)
	}
}

func TestPrepareRequiresScript(t *testing.T) {
	ctx := context.Background()
	translator, _, store, _ := newTranslatorFixture(t)

	unit := testsupport.NewUnit(t, store, "bare", "ur", "universal")
	if err := translator.Prepare(ctx, unit); err == nil {
		t.Fatal("Prepare accepted a unit with no script artifact")
	}
}
