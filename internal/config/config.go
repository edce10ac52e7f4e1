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

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	DataDir  string `toml:"data_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// WordPress contains connection settings for the content backend.
type WordPress struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	AppPassword    string `toml:"app_password"`
	Domain         string `toml:"domain"`
	AuthorID       int64  `toml:"author_id"`
	LookbackHours  int    `toml:"lookback_hours"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Gemini contains configuration for the text-generation service and its
// credential pool.
type Gemini struct {
	APIKeys         []string `toml:"api_keys"`
	BaseURL         string   `toml:"base_url"`
	Model           string   `toml:"model"`
	Temperature     float64  `toml:"temperature"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
	DailyBudget     int      `toml:"daily_budget"`
	CooldownSeconds int      `toml:"cooldown_seconds"`
	RetryAttempts   int      `toml:"retry_attempts"`
	BackoffBase     int      `toml:"backoff_base_seconds"`
	BackoffCap      int      `toml:"backoff_cap_seconds"`
	RequestTimeout  int      `toml:"request_timeout"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Language       string `toml:"language"`
	ImageBaseURL   string `toml:"image_base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Enrichment contains cycle scheduling and throttling settings.
type Enrichment struct {
	CycleIntervalMinutes  int `toml:"cycle_interval_minutes"`
	ItemsPerCycle         int `toml:"items_per_cycle"`
	InterItemDelaySeconds int `toml:"inter_item_delay_seconds"`
	// ExtraFranchises extends the built-in franchise table used for title
	// extraction.
	ExtraFranchises []string `toml:"extra_franchises"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Cycles         bool   `toml:"cycles"`
	Articles       bool   `toml:"articles"`
	Credentials    bool   `toml:"credentials"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Byline.
//
// Configuration sections by subsystem:
//   - Paths: directories, database location, and API bind address
//   - WordPress: content backend connection and eligibility window
//   - Gemini: text-generation credentials, retry and budget policy
//   - TMDB: media catalog lookups
//   - Enrichment: cycle cadence and throttling
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	WordPress     WordPress     `toml:"wordpress"`
	Gemini        Gemini        `toml:"gemini"`
	TMDB          TMDB          `toml:"tmdb"`
	Enrichment    Enrichment    `toml:"enrichment"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/byline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	defaultPath, err := expandPath("~/.config/byline/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("byline.toml")
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
	for _, dir := range []string{c.Paths.LogDir, c.Paths.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the sqlite database location inside the data directory.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, "byline.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "byline.lock")
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

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
