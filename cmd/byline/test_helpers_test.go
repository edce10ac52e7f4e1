package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"byline/internal/config"
	"byline/internal/credentials"
	"byline/internal/cycle"
	"byline/internal/daemon"
	"byline/internal/ledger"
	"byline/internal/logging"
	"byline/internal/media"
	"byline/internal/resolver"
	"byline/internal/services/gemini"
	"byline/internal/services/wordpress"
)

type fakeBackend struct {
	eligible []wordpress.Post
	all      []wordpress.Post
}

func (f *fakeBackend) FetchEligible(context.Context, int64, time.Time) ([]wordpress.Post, error) {
	return f.eligible, nil
}

func (f *fakeBackend) GetPost(_ context.Context, postID int64) (*wordpress.Post, error) {
	for _, post := range f.all {
		if post.ID == postID {
			return &post, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) ApplyUpdate(context.Context, int64, wordpress.PostUpdate) error { return nil }

func (f *fakeBackend) TestConnection(context.Context) error { return nil }

type fakeFinder struct{}

func (fakeFinder) Find(context.Context, resolver.QueryPlan) (*media.Match, error) { return nil, nil }

type fakeEnricher struct{}

func (fakeEnricher) Enrich(_ context.Context, article gemini.Article, _ *media.Match) (*gemini.EnrichedContent, error) {
	return &gemini.EnrichedContent{Title: article.Title, Excerpt: "e", Body: "<b>b</b>", Credential: "primary"}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T, backend *fakeBackend) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.WordPress.BaseURL = "https://example.com"
	cfg.WordPress.Username = "editor"
	cfg.WordPress.AppPassword = "secret"
	cfg.WordPress.AuthorID = 7
	cfg.Gemini.APIKeys = []string{"key-a"}
	cfg.TMDB.APIKey = "tmdb-key"

	configPath := filepath.Join(homeDir, ".config", "byline", "config.toml")
	writeTestConfig(t, configPath, &cfg)

	store, err := ledger.Open(&cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	pool, err := credentials.NewPool(cfg.Gemini.APIKeys, credentials.Options{})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	runner := cycle.NewRunner(backend, resolver.New(resolver.Options{}), fakeFinder{}, fakeEnricher{}, store, nil, logging.NewNop(), cycle.Options{InterItemDelay: -1})
	d, err := daemon.New(&cfg, store, runner, pool, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	waitFor(t, 5*time.Second, func() bool {
		status := d.Status(ctx)
		return !status.CycleActive && !status.LastCycleAt.IsZero()
	})

	return &cliTestEnv{
		cfg:        &cfg,
		daemon:     d,
		apiAddr:    d.APIAddr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[paths]
log_dir = %q
data_dir = %q

[wordpress]
base_url = %q
username = %q
app_password = %q
author_id = %d

[gemini]
api_keys = [%q]

[tmdb]
api_key = %q
`,
		cfg.Paths.LogDir,
		cfg.Paths.DataDir,
		cfg.WordPress.BaseURL,
		cfg.WordPress.Username,
		cfg.WordPress.AppPassword,
		cfg.WordPress.AuthorID,
		cfg.Gemini.APIKeys[0],
		cfg.TMDB.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
