package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
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

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.APIBind = "127.0.0.1:0"
	return &cfg
}

func newDaemon(t *testing.T, cfg *config.Config, backend *fakeBackend, checks ...daemon.HealthCheck) *daemon.Daemon {
	t.Helper()
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	pool, err := credentials.NewPool([]string{"key-a"}, credentials.Options{})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	runner := cycle.NewRunner(backend, resolver.New(resolver.Options{}), fakeFinder{}, fakeEnricher{}, store, nil, logging.NewNop(), cycle.Options{InterItemDelay: -1})
	d, err := daemon.New(cfg, store, runner, pool, nil, logging.NewNop(), checks...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig(t)
	d := newDaemon(t, cfg, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if len(status.Credentials) != 1 || status.Credentials[0].ID != "primary" {
		t.Fatalf("unexpected credential snapshot %+v", status.Credentials)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testConfig(t)
	first := newDaemon(t, cfg, &fakeBackend{})
	second := newDaemon(t, cfg, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lock")
	}
}

func TestDaemonRecordsHealthChecks(t *testing.T) {
	cfg := testConfig(t)
	d := newDaemon(t, cfg, &fakeBackend{},
		daemon.HealthCheck{Name: "wordpress", Check: func(context.Context) error { return nil }},
		daemon.HealthCheck{Name: "tmdb", Check: func(context.Context) error { return errors.New("unreachable") }},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status := d.Status(ctx)
	if len(status.Health) != 2 {
		t.Fatalf("expected 2 health results, got %d", len(status.Health))
	}
	byName := map[string]daemon.HealthResult{}
	for _, result := range status.Health {
		byName[result.Name] = result
	}
	if !byName["wordpress"].Healthy {
		t.Fatal("expected wordpress check to pass")
	}
	if byName["tmdb"].Healthy || byName["tmdb"].Detail == "" {
		t.Fatalf("expected tmdb check failure detail, got %+v", byName["tmdb"])
	}
}

func TestRunCycleNowRejectsOverlap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.APIBind = ""
	d := newDaemon(t, cfg, &fakeBackend{eligible: []wordpress.Post{{ID: 1, Title: "Post", Content: "corpo"}}})

	result, err := d.RunCycleNow(context.Background())
	if err != nil {
		t.Fatalf("RunCycleNow: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}
