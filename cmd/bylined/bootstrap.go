package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"byline/internal/config"
	"byline/internal/credentials"
	"byline/internal/cycle"
	"byline/internal/daemon"
	"byline/internal/ledger"
	"byline/internal/media"
	"byline/internal/notifications"
	"byline/internal/resolver"
	"byline/internal/services/gemini"
	"byline/internal/services/tmdb"
	"byline/internal/services/wordpress"
)

// buildDaemon wires every enrichment component from configuration.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	pool, err := credentials.NewPool(cfg.Gemini.APIKeys, credentials.Options{
		DailyBudget:     cfg.Gemini.DailyBudget,
		DefaultCooldown: time.Duration(cfg.Gemini.CooldownSeconds) * time.Second,
		Journal:         store,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	gem, err := gemini.NewClient(gemini.Config{
		BaseURL:         cfg.Gemini.BaseURL,
		Model:           cfg.Gemini.Model,
		Domain:          cfg.WordPress.Domain,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		TimeoutSeconds:  cfg.Gemini.RequestTimeout,
	}, pool, logger,
		gemini.WithRetryMaxAttempts(cfg.Gemini.RetryAttempts),
		gemini.WithRetryBackoff(
			time.Duration(cfg.Gemini.BackoffBase)*time.Second,
			time.Duration(cfg.Gemini.BackoffCap)*time.Second,
		),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	catalog, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithImageBaseURL(cfg.TMDB.ImageBaseURL),
		tmdb.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TMDB.RequestTimeout) * time.Second}),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	backend, err := wordpress.New(cfg.WordPress.BaseURL, cfg.WordPress.Username, cfg.WordPress.AppPassword,
		wordpress.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.WordPress.RequestTimeout) * time.Second}),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	res := resolver.New(resolver.Options{ExtraFranchises: cfg.Enrichment.ExtraFranchises})
	lookup := media.NewLookup(catalog, catalog, logger)
	notifier := notifications.NewService(cfg)

	runner := cycle.NewRunner(backend, res, lookup, gem, store,
		notifications.NewBridge(notifier, logger), logger,
		cycle.Options{
			AuthorID:       cfg.WordPress.AuthorID,
			Lookback:       time.Duration(cfg.WordPress.LookbackHours) * time.Hour,
			MaxItems:       cfg.Enrichment.ItemsPerCycle,
			InterItemDelay: interItemDelay(cfg),
		},
	)

	checks := []daemon.HealthCheck{
		{Name: "wordpress", Check: backend.TestConnection},
		{Name: "gemini", Check: gem.HealthCheck},
		{Name: "tmdb", Check: catalog.TestConnection},
	}
	return daemon.New(cfg, store, runner, pool, notifier, logger, checks...)
}

// interItemDelay maps a configured zero to "no delay"; the runner treats
// zero as unset.
func interItemDelay(cfg *config.Config) time.Duration {
	seconds := cfg.Enrichment.InterItemDelaySeconds
	if seconds == 0 {
		return -1
	}
	return time.Duration(seconds) * time.Second
}
