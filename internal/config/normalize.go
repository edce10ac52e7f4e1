package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWordPress()
	c.normalizeGemini()
	c.normalizeTMDB()
	c.normalizeEnrichment()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeWordPress() {
	c.WordPress.BaseURL = strings.TrimRight(strings.TrimSpace(c.WordPress.BaseURL), "/")
	c.WordPress.Username = strings.TrimSpace(c.WordPress.Username)
	c.WordPress.AppPassword = strings.TrimSpace(c.WordPress.AppPassword)
	if c.WordPress.AppPassword == "" {
		if value, ok := os.LookupEnv("WORDPRESS_APP_PASSWORD"); ok {
			c.WordPress.AppPassword = strings.TrimSpace(value)
		}
	}
	c.WordPress.Domain = strings.TrimSpace(c.WordPress.Domain)
	if c.WordPress.Domain == "" && c.WordPress.BaseURL != "" {
		c.WordPress.Domain = strings.TrimPrefix(strings.TrimPrefix(c.WordPress.BaseURL, "https://"), "http://")
	}
	if c.WordPress.LookbackHours <= 0 {
		c.WordPress.LookbackHours = defaultWordPressLookback
	}
	if c.WordPress.RequestTimeout <= 0 {
		c.WordPress.RequestTimeout = defaultWordPressTimeout
	}
}

func (c *Config) normalizeGemini() {
	keys := make([]string, 0, len(c.Gemini.APIKeys))
	seen := make(map[string]struct{}, len(c.Gemini.APIKeys))
	for _, key := range c.Gemini.APIKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		keys = append(keys, trimmed)
	}
	if len(keys) == 0 {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok && strings.TrimSpace(value) != "" {
			keys = append(keys, strings.TrimSpace(value))
		}
	}
	c.Gemini.APIKeys = keys

	c.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gemini.BaseURL), "/")
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Gemini.Temperature <= 0 {
		c.Gemini.Temperature = defaultGeminiTemperature
	}
	if c.Gemini.MaxOutputTokens <= 0 {
		c.Gemini.MaxOutputTokens = defaultGeminiMaxOutput
	}
	if c.Gemini.DailyBudget <= 0 {
		c.Gemini.DailyBudget = defaultGeminiDailyBudget
	}
	if c.Gemini.CooldownSeconds <= 0 {
		c.Gemini.CooldownSeconds = defaultGeminiCooldownSeconds
	}
	if c.Gemini.RetryAttempts <= 0 {
		c.Gemini.RetryAttempts = defaultGeminiRetryAttempts
	}
	if c.Gemini.BackoffBase <= 0 {
		c.Gemini.BackoffBase = defaultGeminiBackoffBase
	}
	if c.Gemini.BackoffCap <= 0 {
		c.Gemini.BackoffCap = defaultGeminiBackoffCap
	}
	if c.Gemini.RequestTimeout <= 0 {
		c.Gemini.RequestTimeout = defaultGeminiTimeout
	}
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.ImageBaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.ImageBaseURL), "/")
	if c.TMDB.ImageBaseURL == "" {
		c.TMDB.ImageBaseURL = defaultTMDBImageBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	if c.TMDB.RequestTimeout <= 0 {
		c.TMDB.RequestTimeout = defaultTMDBTimeout
	}
}

func (c *Config) normalizeEnrichment() {
	if c.Enrichment.CycleIntervalMinutes <= 0 {
		c.Enrichment.CycleIntervalMinutes = defaultCycleIntervalMinutes
	}
	if c.Enrichment.ItemsPerCycle <= 0 {
		c.Enrichment.ItemsPerCycle = defaultItemsPerCycle
	}
	if c.Enrichment.InterItemDelaySeconds < 0 {
		c.Enrichment.InterItemDelaySeconds = defaultInterItemDelaySeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
