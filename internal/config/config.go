package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	ArtifactsDir string `toml:"artifacts_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Provider contains connection and routing settings for one generation or
// synthesis backend. Priority orders failover: lower values are tried first.
type Provider struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Voice          string  `toml:"voice"`
	Priority       int     `toml:"priority"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxAttempts    int     `toml:"max_attempts"`
	Concurrency    int     `toml:"concurrency"`
	CostPer1K      float64 `toml:"cost_per_1k"`
}

// Budget contains spend limits enforced by the cost ledger. Amounts are USD.
// MaxPerRequest caps the estimated cost of any single provider call; zero
// disables the cap.
type Budget struct {
	DailyLimit    float64 `toml:"daily_limit"`
	MonthlyLimit  float64 `toml:"monthly_limit"`
	SoftLimitPct  float64 `toml:"soft_limit_pct"`
	MaxPerRequest float64 `toml:"max_per_request"`
}

// Pipeline contains content-unit processing settings.
type Pipeline struct {
	DuplicateThreshold float64  `toml:"duplicate_threshold"`
	Languages          []string `toml:"languages"`
	Audiences          []string `toml:"audiences"`
}

// Scheduler contains publish batching settings.
type Scheduler struct {
	SlotTimes           []string `toml:"slot_times"`
	DailyCapPerLanguage int      `toml:"daily_cap_per_language"`
	DailyCapGlobal      int      `toml:"daily_cap_global"`
	CadenceMinutes      int      `toml:"cadence_minutes"`
}

// Workflow contains daemon timing and worker pool settings.
type Workflow struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	Workers             int `toml:"workers"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Duplicates     bool   `toml:"duplicates"`
	Budget         bool   `toml:"budget"`
	Scheduling     bool   `toml:"scheduling"`
	Publishing     bool   `toml:"publishing"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for guidora.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and artifact directories
//   - Logging: log format and level
//   - Budget: daily/monthly spend limits for the cost ledger
//   - Providers: per-backend connection, priority, and retry settings
//   - Pipeline: duplicate detection threshold, languages, audiences
//   - Scheduler: publish slots and daily caps
//   - Workflow: daemon polling intervals and worker counts
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths           Paths               `toml:"paths"`
	Logging         Logging             `toml:"logging"`
	Budget          Budget              `toml:"budget"`
	TextProviders   map[string]Provider `toml:"text_providers"`
	SpeechProviders map[string]Provider `toml:"speech_providers"`
	Pipeline        Pipeline            `toml:"pipeline"`
	Scheduler       Scheduler           `toml:"scheduler"`
	Workflow        Workflow            `toml:"workflow"`
	Notifications   Notifications       `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/guidora/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("guidora.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ArtifactsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ArtifactsDir, err = expandPath(c.Paths.ArtifactsDir); err != nil {
		return fmt.Errorf("paths.artifacts_dir: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}

	normalized := make([]string, 0, len(c.Pipeline.Languages))
	for _, lang := range c.Pipeline.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang != "" {
			normalized = append(normalized, lang)
		}
	}
	c.Pipeline.Languages = normalized

	c.TextProviders = normalizeProviders(c.TextProviders)
	c.SpeechProviders = normalizeProviders(c.SpeechProviders)
	return nil
}

func normalizeProviders(providers map[string]Provider) map[string]Provider {
	normalized := make(map[string]Provider, len(providers))
	for name, p := range providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
		if p.TimeoutSeconds <= 0 {
			p.TimeoutSeconds = defaultProviderTimeoutSeconds
		}
		if p.MaxAttempts <= 0 {
			p.MaxAttempts = defaultProviderMaxAttempts
		}
		if p.Concurrency <= 0 {
			p.Concurrency = defaultProviderConcurrency
		}
		normalized[name] = p
	}
	return normalized
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
