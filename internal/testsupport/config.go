package testsupport

import (
	"path/filepath"
	"testing"

	"guidora/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	for name, provider := range cfgVal.TextProviders {
		provider.APIKey = "test"
		cfgVal.TextProviders[name] = provider
	}
	for name, provider := range cfgVal.SpeechProviders {
		provider.APIKey = "test"
		cfgVal.SpeechProviders[name] = provider
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBudget overrides the hard spend limits on the test config.
func WithBudget(daily, monthly float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Budget.DailyLimit = daily
		b.cfg.Budget.MonthlyLimit = monthly
	}
}

// WithDuplicateThreshold overrides the similarity threshold on the test config.
func WithDuplicateThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.DuplicateThreshold = threshold
	}
}

// WithLanguages overrides the language priority order on the test config.
func WithLanguages(languages ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Languages = languages
	}
}

// WithSchedulerCaps overrides the per-language and global daily caps.
func WithSchedulerCaps(perLanguage, global int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.DailyCapPerLanguage = perLanguage
		b.cfg.Scheduler.DailyCapGlobal = global
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
