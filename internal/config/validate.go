package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWordPress(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWordPress() error {
	if c.WordPress.BaseURL == "" {
		return errors.New("wordpress.base_url must be set")
	}
	parsed, err := url.Parse(c.WordPress.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("wordpress.base_url %q is not a valid URL", c.WordPress.BaseURL)
	}
	if c.WordPress.Username == "" {
		return errors.New("wordpress.username must be set")
	}
	if c.WordPress.AppPassword == "" {
		return errors.New("wordpress.app_password must be set (or set WORDPRESS_APP_PASSWORD)")
	}
	if c.WordPress.AuthorID <= 0 {
		return errors.New("wordpress.author_id must be positive")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if len(c.Gemini.APIKeys) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/byline/config.toml"
		}
		return fmt.Errorf("gemini.api_keys must include at least one key. Set GEMINI_API_KEY env var or edit %s (create with 'byline config init')", defaultPath)
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return errors.New("gemini.temperature must be between 0 and 2")
	}
	if c.Gemini.BackoffCap < c.Gemini.BackoffBase {
		return errors.New("gemini.backoff_cap_seconds must be >= gemini.backoff_base_seconds")
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		return errors.New("tmdb.api_key is required. Set TMDB_API_KEY env var or edit the config file")
	}
	if !strings.HasPrefix(c.TMDB.BaseURL, "http") {
		return fmt.Errorf("tmdb.base_url %q is not a valid URL", c.TMDB.BaseURL)
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	if err := ensurePositiveMap(map[string]int{
		"enrichment.cycle_interval_minutes": c.Enrichment.CycleIntervalMinutes,
		"enrichment.items_per_cycle":        c.Enrichment.ItemsPerCycle,
		"wordpress.lookback_hours":          c.WordPress.LookbackHours,
		"wordpress.request_timeout":         c.WordPress.RequestTimeout,
		"gemini.request_timeout":            c.Gemini.RequestTimeout,
		"tmdb.request_timeout":              c.TMDB.RequestTimeout,
		"notifications.request_timeout":     c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Enrichment.InterItemDelaySeconds < 0 {
		return errors.New("enrichment.inter_item_delay_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
