package config

const (
	defaultLogDir                = "~/.local/share/byline/logs"
	defaultDataDir               = "~/.local/share/byline"
	defaultAPIBind               = "127.0.0.1:7512"
	defaultWordPressLookback     = 24
	defaultWordPressTimeout      = 60
	defaultGeminiBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel           = "gemini-2.0-flash"
	defaultGeminiTemperature     = 0.7
	defaultGeminiMaxOutput       = 8192
	defaultGeminiDailyBudget     = 45
	defaultGeminiCooldownSeconds = 86400
	defaultGeminiRetryAttempts   = 5
	defaultGeminiBackoffBase     = 2
	defaultGeminiBackoffCap      = 60
	defaultGeminiTimeout         = 120
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBImageBaseURL      = "https://image.tmdb.org/t/p"
	defaultTMDBLanguage          = "pt-BR"
	defaultTMDBTimeout           = 10
	defaultCycleIntervalMinutes  = 60
	defaultItemsPerCycle         = 2
	defaultInterItemDelaySeconds = 30
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			DataDir: defaultDataDir,
			APIBind: defaultAPIBind,
		},
		WordPress: WordPress{
			LookbackHours:  defaultWordPressLookback,
			RequestTimeout: defaultWordPressTimeout,
		},
		Gemini: Gemini{
			BaseURL:         defaultGeminiBaseURL,
			Model:           defaultGeminiModel,
			Temperature:     defaultGeminiTemperature,
			MaxOutputTokens: defaultGeminiMaxOutput,
			DailyBudget:     defaultGeminiDailyBudget,
			CooldownSeconds: defaultGeminiCooldownSeconds,
			RetryAttempts:   defaultGeminiRetryAttempts,
			BackoffBase:     defaultGeminiBackoffBase,
			BackoffCap:      defaultGeminiBackoffCap,
			RequestTimeout:  defaultGeminiTimeout,
		},
		TMDB: TMDB{
			BaseURL:        defaultTMDBBaseURL,
			ImageBaseURL:   defaultTMDBImageBaseURL,
			Language:       defaultTMDBLanguage,
			RequestTimeout: defaultTMDBTimeout,
		},
		Enrichment: Enrichment{
			CycleIntervalMinutes:  defaultCycleIntervalMinutes,
			ItemsPerCycle:         defaultItemsPerCycle,
			InterItemDelaySeconds: defaultInterItemDelaySeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Cycles:         true,
			Articles:       true,
			Credentials:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
