package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"guidora/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("exists = true for a missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Budget.DailyLimit != 5.0 {
		t.Fatalf("daily limit = %v, want default 5.0", cfg.Budget.DailyLimit)
	}
	if cfg.Pipeline.DuplicateThreshold != 0.85 {
		t.Fatalf("duplicate threshold = %v, want default 0.85", cfg.Pipeline.DuplicateThreshold)
	}
}

func TestLoadAppliesOverridesAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[budget]
daily_limit = 2.5
monthly_limit = 40.0

[pipeline]
duplicate_threshold = 0.9
languages = [" EN ", "Ur", ""]

[text_providers.openai]
enabled = true
api_key = "  key  "
base_url = "https://api.openai.com/v1/"
model = "gpt-4-turbo"
priority = 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("exists = false for a written file")
	}
	if cfg.Budget.DailyLimit != 2.5 || cfg.Budget.MonthlyLimit != 40.0 {
		t.Fatalf("budget = %v/%v, want 2.5/40.0", cfg.Budget.DailyLimit, cfg.Budget.MonthlyLimit)
	}
	if len(cfg.Pipeline.Languages) != 2 || cfg.Pipeline.Languages[0] != "en" || cfg.Pipeline.Languages[1] != "ur" {
		t.Fatalf("languages = %v, want [en ur]", cfg.Pipeline.Languages)
	}

	provider, ok := cfg.TextProviders["openai"]
	if !ok {
		t.Fatalf("openai provider missing after load: %v", cfg.TextProviders)
	}
	if provider.APIKey != "key" {
		t.Fatalf("api key = %q, want trimmed %q", provider.APIKey, "key")
	}
	if strings.HasSuffix(provider.BaseURL, "/") {
		t.Fatalf("base url = %q, trailing slash not trimmed", provider.BaseURL)
	}
	if provider.TimeoutSeconds != 60 || provider.MaxAttempts != 3 {
		t.Fatalf("timeout/attempts = %d/%d, want defaults 60/3", provider.TimeoutSeconds, provider.MaxAttempts)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{
			name: "negative daily limit",
			content: `
[budget]
daily_limit = -1.0
`,
		},
		{
			name: "monthly below daily",
			content: `
[budget]
daily_limit = 10.0
monthly_limit = 5.0
`,
		},
		{
			name: "negative per-request ceiling",
			content: `
[budget]
max_per_request = -0.2
`,
		},
		{
			name: "bad slot time",
			content: `
[scheduler]
slot_times = ["9am"]
`,
		},
		{
			name: "threshold out of range",
			content: `
[pipeline]
duplicate_threshold = 1.5
`,
		},
		{
			name: "global cap below language cap",
			content: `
[scheduler]
daily_cap_per_language = 4
daily_cap_global = 2
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("Load accepted an invalid config")
			}
		})
	}
}

func TestWriteSampleProducesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample file not found by Load")
	}
	if len(cfg.TextProviders) == 0 || len(cfg.SpeechProviders) == 0 {
		t.Fatal("sample config lists no providers")
	}

	if err := config.WriteSample(path); err == nil {
		t.Fatal("WriteSample overwrote an existing file")
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ArtifactsDir = filepath.Join(base, "artifacts", "nested")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.ArtifactsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
}
