package cycle_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"byline/internal/cycle"
	"byline/internal/ledger"
	"byline/internal/logging"
	"byline/internal/media"
	"byline/internal/resolver"
	"byline/internal/services"
	"byline/internal/services/gemini"
	"byline/internal/services/wordpress"
)

type fakeBackend struct {
	posts    []wordpress.Post
	fetchErr error
	applied  []int64
	updates  map[int64]wordpress.PostUpdate
}

func (f *fakeBackend) FetchEligible(_ context.Context, _ int64, _ time.Time) ([]wordpress.Post, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.posts, nil
}

func (f *fakeBackend) GetPost(_ context.Context, postID int64) (*wordpress.Post, error) {
	for _, post := range f.posts {
		if post.ID == postID {
			return &post, nil
		}
	}
	return nil, nil
}

func (f *fakeBackend) ApplyUpdate(_ context.Context, postID int64, update wordpress.PostUpdate) error {
	f.applied = append(f.applied, postID)
	if f.updates == nil {
		f.updates = make(map[int64]wordpress.PostUpdate)
	}
	f.updates[postID] = update
	return nil
}

func (f *fakeBackend) TestConnection(context.Context) error { return nil }

type fakeFinder struct {
	match *media.Match
	err   error
}

func (f *fakeFinder) Find(context.Context, resolver.QueryPlan) (*media.Match, error) {
	return f.match, f.err
}

type fakeEnricher struct {
	fn    func(article gemini.Article, match *media.Match) (*gemini.EnrichedContent, error)
	calls []gemini.Article
}

func (f *fakeEnricher) Enrich(_ context.Context, article gemini.Article, match *media.Match) (*gemini.EnrichedContent, error) {
	f.calls = append(f.calls, article)
	if f.fn != nil {
		return f.fn(article, match)
	}
	return &gemini.EnrichedContent{Title: "novo " + article.Title, Excerpt: "resumo", Body: "<b>corpo</b>", Credential: "primary"}, nil
}

type recordingEvents struct {
	started   int
	completed []cycle.Result
	enriched  []int64
	failed    []int64
	exhausted int
}

func (r *recordingEvents) CycleStarted(context.Context, string, int) { r.started++ }
func (r *recordingEvents) CycleCompleted(_ context.Context, result cycle.Result) {
	r.completed = append(r.completed, result)
}
func (r *recordingEvents) ArticleEnriched(_ context.Context, post wordpress.Post, _ *media.Match) {
	r.enriched = append(r.enriched, post.ID)
}
func (r *recordingEvents) EnrichmentFailed(_ context.Context, post wordpress.Post, _ error) {
	r.failed = append(r.failed, post.ID)
}
func (r *recordingEvents) CredentialsExhausted(context.Context) { r.exhausted++ }

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.OpenPath(filepath.Join(t.TempDir(), "byline.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func post(id int64, title string) wordpress.Post {
	return wordpress.Post{ID: id, Title: title, Content: "conteúdo do post"}
}

func newRunner(t *testing.T, backend *fakeBackend, finder cycle.Finder, enricher cycle.Enricher, store *ledger.Store, events cycle.Events, opts cycle.Options) *cycle.Runner {
	t.Helper()
	return cycle.NewRunner(backend, resolver.New(resolver.Options{}), finder, enricher, store, events, logging.NewNop(), opts)
}

func TestRunEnrichesInInputOrderUpToCap(t *testing.T) {
	backend := &fakeBackend{posts: []wordpress.Post{post(1, "Primeiro"), post(2, "Segundo"), post(3, "Terceiro")}}
	enricher := &fakeEnricher{}
	store := newStore(t)
	events := &recordingEvents{}

	var sleeps []time.Duration
	runner := newRunner(t, backend, &fakeFinder{}, enricher, store, events, cycle.Options{
		MaxItems:       2,
		InterItemDelay: 30 * time.Second,
		Sleeper:        func(d time.Duration) { sleeps = append(sleeps, d) },
	})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Processed != 2 || result.Succeeded != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(backend.applied) != 2 || backend.applied[0] != 1 || backend.applied[1] != 2 {
		t.Fatalf("unexpected apply order %v", backend.applied)
	}
	if len(sleeps) != 1 || sleeps[0] != 30*time.Second {
		t.Fatalf("expected one inter-item delay, got %v", sleeps)
	}
	if events.started != 1 || len(events.completed) != 1 {
		t.Fatalf("unexpected events %+v", events)
	}
	if update := backend.updates[1]; update.Title != "novo Primeiro" || update.Content != "<b>corpo</b>" {
		t.Fatalf("unexpected update %+v", update)
	}
}

func TestRunSkipsAlreadyEnrichedPosts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	record, err := store.StartEnrichment(ctx, 1, "old-cycle", "Primeiro")
	if err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}
	if err := store.MarkCompleted(ctx, record.ID, "primary", "req", false, ""); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	backend := &fakeBackend{posts: []wordpress.Post{post(1, "Primeiro"), post(2, "Segundo")}}
	runner := newRunner(t, backend, &fakeFinder{}, &fakeEnricher{}, store, nil, cycle.Options{InterItemDelay: -1})

	result, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 1 || result.Processed != 1 || result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(backend.applied) != 1 || backend.applied[0] != 2 {
		t.Fatalf("unexpected applies %v", backend.applied)
	}
}

func TestRunIsolatesPerPostFailures(t *testing.T) {
	backend := &fakeBackend{posts: []wordpress.Post{post(1, "Quebrado"), post(2, "Bom")}}
	enricher := &fakeEnricher{fn: func(article gemini.Article, _ *media.Match) (*gemini.EnrichedContent, error) {
		if article.PostID == 1 {
			return nil, services.Wrap(services.ErrTransient, "gemini", "enrich", "boom", nil)
		}
		return &gemini.EnrichedContent{Title: "t", Excerpt: "e", Body: "<b>b</b>"}, nil
	}}
	store := newStore(t)
	events := &recordingEvents{}
	runner := newRunner(t, backend, &fakeFinder{}, enricher, store, events, cycle.Options{InterItemDelay: -1})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Succeeded != 1 || result.Aborted {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(events.failed) != 1 || events.failed[0] != 1 {
		t.Fatalf("unexpected failure events %v", events.failed)
	}

	records, err := store.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var failedReason string
	for _, record := range records {
		if record.PostID == 1 {
			failedReason = record.FailureReason
		}
	}
	if failedReason != "transient" {
		t.Fatalf("unexpected reason %q", failedReason)
	}
}

func TestRunAbortsWhenAllCredentialsExhausted(t *testing.T) {
	backend := &fakeBackend{posts: []wordpress.Post{post(1, "A"), post(2, "B"), post(3, "C")}}
	enricher := &fakeEnricher{fn: func(gemini.Article, *media.Match) (*gemini.EnrichedContent, error) {
		return nil, services.Wrap(services.ErrAllCredentialsExhausted, "gemini", "enrich", "no credential left", nil)
	}}
	store := newStore(t)
	events := &recordingEvents{}
	runner := newRunner(t, backend, &fakeFinder{}, enricher, store, events, cycle.Options{MaxItems: 3, InterItemDelay: -1})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Aborted || result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if events.exhausted != 1 {
		t.Fatalf("expected exhaustion event, got %d", events.exhausted)
	}
	if len(enricher.calls) != 1 {
		t.Fatalf("expected no further attempts after exhaustion, got %d", len(enricher.calls))
	}
}

func TestRunTreatsLookupErrorAsNoMedia(t *testing.T) {
	backend := &fakeBackend{posts: []wordpress.Post{post(1, "Qualquer")}}
	sawMatch := &media.Match{Title: "sentinel"}
	enricher := &fakeEnricher{fn: func(_ gemini.Article, match *media.Match) (*gemini.EnrichedContent, error) {
		sawMatch = match
		return &gemini.EnrichedContent{Title: "t", Excerpt: "e", Body: "<b>b</b>"}, nil
	}}
	store := newStore(t)
	runner := newRunner(t, backend, &fakeFinder{err: errors.New("catalog down")}, enricher, store, nil, cycle.Options{InterItemDelay: -1})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if sawMatch != nil {
		t.Fatalf("expected nil media context, got %+v", sawMatch)
	}
}

func TestEnrichOne(t *testing.T) {
	backend := &fakeBackend{posts: []wordpress.Post{post(7, "Manual")}}
	store := newStore(t)
	runner := newRunner(t, backend, &fakeFinder{}, &fakeEnricher{}, store, nil, cycle.Options{InterItemDelay: -1})
	ctx := context.Background()

	if err := runner.EnrichOne(ctx, 7, false); err != nil {
		t.Fatalf("EnrichOne: %v", err)
	}
	if len(backend.applied) != 1 || backend.applied[0] != 7 {
		t.Fatalf("unexpected applies %v", backend.applied)
	}

	err := runner.EnrichOne(ctx, 7, false)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error on repeat, got %v", err)
	}

	if err := runner.EnrichOne(ctx, 7, true); err != nil {
		t.Fatalf("forced EnrichOne: %v", err)
	}

	err = runner.EnrichOne(ctx, 999, false)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
