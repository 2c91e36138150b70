package config

const (
	defaultDataDir      = "~/.local/share/guidora/data"
	defaultLogDir       = "~/.local/share/guidora/logs"
	defaultArtifactsDir = "~/.local/share/guidora/artifacts"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultDailyLimit    = 5.0
	defaultMonthlyLimit  = 100.0
	defaultSoftLimitPct  = 0.8
	defaultMaxPerRequest = 0.50

	defaultDuplicateThreshold = 0.85

	defaultDailyCapPerLanguage = 2
	defaultDailyCapGlobal      = 8
	defaultCadenceMinutes      = 30

	defaultPollIntervalSeconds = 10
	defaultWorkers             = 4

	defaultProviderTimeoutSeconds = 60
	defaultProviderMaxAttempts    = 3
	defaultProviderConcurrency    = 2

	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultDeepSeekBaseURL   = "https://api.deepseek.com"
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			ArtifactsDir: defaultArtifactsDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Budget: Budget{
			DailyLimit:    defaultDailyLimit,
			MonthlyLimit:  defaultMonthlyLimit,
			SoftLimitPct:  defaultSoftLimitPct,
			MaxPerRequest: defaultMaxPerRequest,
		},
		TextProviders: map[string]Provider{
			"openai": {
				Enabled:        true,
				BaseURL:        defaultOpenAIBaseURL,
				Model:          "gpt-4-turbo",
				Priority:       1,
				TimeoutSeconds: defaultProviderTimeoutSeconds,
				MaxAttempts:    defaultProviderMaxAttempts,
				Concurrency:    defaultProviderConcurrency,
				CostPer1K:      0.01,
			},
			"deepseek": {
				Enabled:        true,
				BaseURL:        defaultDeepSeekBaseURL,
				Model:          "deepseek-chat",
				Priority:       2,
				TimeoutSeconds: defaultProviderTimeoutSeconds,
				MaxAttempts:    defaultProviderMaxAttempts,
				Concurrency:    defaultProviderConcurrency,
				CostPer1K:      0.002,
			},
		},
		SpeechProviders: map[string]Provider{
			"openai": {
				Enabled:        true,
				BaseURL:        defaultOpenAIBaseURL,
				Model:          "tts-1",
				Voice:          "alloy",
				Priority:       1,
				TimeoutSeconds: defaultProviderTimeoutSeconds,
				MaxAttempts:    defaultProviderMaxAttempts,
				Concurrency:    defaultProviderConcurrency,
				CostPer1K:      0.015,
			},
			"elevenlabs": {
				Enabled:        false,
				BaseURL:        defaultElevenLabsBaseURL,
				Model:          "eleven_multilingual_v2",
				Voice:          "21m00Tcm4TlvDq8ikWAM",
				Priority:       2,
				TimeoutSeconds: defaultProviderTimeoutSeconds,
				MaxAttempts:    defaultProviderMaxAttempts,
				Concurrency:    1,
				CostPer1K:      0.3,
			},
		},
		Pipeline: Pipeline{
			DuplicateThreshold: defaultDuplicateThreshold,
			Languages:          []string{"en", "hi", "es", "fr", "ur"},
			Audiences:          []string{"universal", "muslim_community", "spiritual_seekers"},
		},
		Scheduler: Scheduler{
			SlotTimes:           []string{"09:00", "13:00", "17:00", "21:00"},
			DailyCapPerLanguage: defaultDailyCapPerLanguage,
			DailyCapGlobal:      defaultDailyCapGlobal,
			CadenceMinutes:      defaultCadenceMinutes,
		},
		Workflow: Workflow{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			Workers:             defaultWorkers,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Duplicates:     true,
			Budget:         true,
			Scheduling:     true,
			Publishing:     true,
			Errors:         true,
		},
	}
}
