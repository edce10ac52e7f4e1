// Package cycle drives one enrichment pass: fetch eligible posts, resolve
// media context, enrich through the text-generation service, and write the
// result back. Failures are isolated per post; only credential exhaustion
// aborts the remainder of a pass.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"byline/internal/ledger"
	"byline/internal/logging"
	"byline/internal/media"
	"byline/internal/resolver"
	"byline/internal/services"
	"byline/internal/services/gemini"
	"byline/internal/services/wordpress"
)

// Finder matches a query plan against the media catalog.
type Finder interface {
	Find(ctx context.Context, plan resolver.QueryPlan) (*media.Match, error)
}

// Enricher produces enriched content for one article.
type Enricher interface {
	Enrich(ctx context.Context, article gemini.Article, match *media.Match) (*gemini.EnrichedContent, error)
}

// Events receives pass milestones, typically for push notifications.
type Events interface {
	CycleStarted(ctx context.Context, cycleID string, eligible int)
	CycleCompleted(ctx context.Context, result Result)
	ArticleEnriched(ctx context.Context, post wordpress.Post, match *media.Match)
	EnrichmentFailed(ctx context.Context, post wordpress.Post, err error)
	CredentialsExhausted(ctx context.Context)
}

// NopEvents discards all milestones.
type NopEvents struct{}

func (NopEvents) CycleStarted(context.Context, string, int)                     {}
func (NopEvents) CycleCompleted(context.Context, Result)                        {}
func (NopEvents) ArticleEnriched(context.Context, wordpress.Post, *media.Match) {}
func (NopEvents) EnrichmentFailed(context.Context, wordpress.Post, error)       {}
func (NopEvents) CredentialsExhausted(context.Context)                          {}

// Options tunes one runner. Zero values fall back to defaults.
type Options struct {
	// AuthorID restricts eligible posts to one author.
	AuthorID int64
	// Lookback bounds how far back eligible posts are fetched (default 24h).
	Lookback time.Duration
	// MaxItems caps how many posts one pass enriches (default 2).
	MaxItems int
	// InterItemDelay spaces consecutive enrichments (default 30s). Negative
	// disables the delay.
	InterItemDelay time.Duration
	// Sleeper overrides how the inter-item delay waits, for tests.
	Sleeper func(time.Duration)
	// Now is the clock, injectable for tests.
	Now func() time.Time
}

// Result summarizes one pass.
type Result struct {
	CycleID   string `json:"cycle_id"`
	Eligible  int    `json:"eligible"`
	Processed int    `json:"processed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Aborted   bool   `json:"aborted"`
}

// Runner executes enrichment passes.
type Runner struct {
	backend  wordpress.Backend
	resolver *resolver.Resolver
	finder   Finder
	enricher Enricher
	store    *ledger.Store
	events   Events
	logger   *slog.Logger
	opts     Options
}

// NewRunner wires a runner. events may be nil.
func NewRunner(backend wordpress.Backend, res *resolver.Resolver, finder Finder, enricher Enricher, store *ledger.Store, events Events, logger *slog.Logger, opts Options) *Runner {
	if opts.Lookback <= 0 {
		opts.Lookback = 24 * time.Hour
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 2
	}
	if opts.InterItemDelay == 0 {
		opts.InterItemDelay = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Runner{
		backend:  backend,
		resolver: res,
		finder:   finder,
		enricher: enricher,
		store:    store,
		events:   events,
		logger:   logging.NewComponentLogger(logger, "cycle"),
		opts:     opts,
	}
}

// Run executes one pass over the eligible posts.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cycleID := uuid.NewString()
	ctx = services.WithCycleID(ctx, cycleID)
	logger := logging.WithContext(ctx, r.logger)

	posts, err := r.backend.FetchEligible(ctx, r.opts.AuthorID, r.opts.Now().Add(-r.opts.Lookback))
	if err != nil {
		logger.Error("fetching eligible posts failed", logging.Error(err))
		return nil, services.Wrap(services.ErrTransient, "cycle", "run", "fetch eligible posts", err)
	}

	result := &Result{CycleID: cycleID, Eligible: len(posts)}
	if err := r.store.StartCycle(ctx, cycleID); err != nil {
		return nil, err
	}
	r.events.CycleStarted(ctx, cycleID, len(posts))
	logger.Info("cycle started", logging.Int("eligible", len(posts)), logging.Int("cap", r.opts.MaxItems))

	for _, post := range posts {
		if result.Processed >= r.opts.MaxItems {
			break
		}
		if ctx.Err() != nil {
			break
		}

		enriched, err := r.store.WasEnriched(ctx, post.ID)
		if err != nil {
			return result, err
		}
		if enriched {
			result.Skipped++
			logger.Debug("post already enriched, skipping", logging.Int64(logging.FieldPostID, post.ID))
			continue
		}

		if result.Processed > 0 {
			if err := r.pause(ctx); err != nil {
				break
			}
		}
		result.Processed++

		if err := r.enrichPost(ctx, cycleID, post); err != nil {
			result.Failed++
			if errors.Is(err, services.ErrAllCredentialsExhausted) {
				result.Aborted = true
				r.events.CredentialsExhausted(ctx)
				logger.Warn("all credentials exhausted, aborting cycle",
					logging.String(logging.FieldEventType, "credentials_exhausted"))
				break
			}
			continue
		}
		result.Succeeded++
	}

	if err := r.store.FinishCycle(ctx, cycleID, result.Processed, result.Succeeded, result.Failed, result.Skipped); err != nil {
		logger.Warn("recording cycle summary failed", logging.Error(err))
	}
	r.events.CycleCompleted(ctx, *result)
	logger.Info("cycle completed",
		logging.Int("processed", result.Processed),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Bool("aborted", result.Aborted))
	return result, ctx.Err()
}

// PendingPost is an eligible post with no completed enrichment yet.
type PendingPost struct {
	PostID    int64     `json:"post_id"`
	Title     string    `json:"title"`
	Published time.Time `json:"published_at"`
}

// Pending lists the eligible posts the next pass would consider.
func (r *Runner) Pending(ctx context.Context) ([]PendingPost, error) {
	posts, err := r.backend.FetchEligible(ctx, r.opts.AuthorID, r.opts.Now().Add(-r.opts.Lookback))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "cycle", "pending", "fetch eligible posts", err)
	}
	pending := make([]PendingPost, 0, len(posts))
	for _, post := range posts {
		enriched, err := r.store.WasEnriched(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		if enriched {
			continue
		}
		pending = append(pending, PendingPost{PostID: post.ID, Title: post.Title, Published: post.Published})
	}
	return pending, nil
}

// EnrichOne enriches a single post outside the scheduled pass. force skips
// the already-enriched check.
func (r *Runner) EnrichOne(ctx context.Context, postID int64, force bool) error {
	cycleID := "manual-" + uuid.NewString()
	ctx = services.WithCycleID(ctx, cycleID)

	if !force {
		enriched, err := r.store.WasEnriched(ctx, postID)
		if err != nil {
			return err
		}
		if enriched {
			return services.Wrap(services.ErrValidation, "cycle", "enrich one", fmt.Sprintf("post %d already enriched, use force to redo", postID), nil)
		}
	}

	post, err := r.backend.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return services.Wrap(services.ErrNotFound, "cycle", "enrich one", fmt.Sprintf("post %d not found", postID), nil)
	}
	return r.enrichPost(ctx, cycleID, *post)
}

func (r *Runner) enrichPost(ctx context.Context, cycleID string, post wordpress.Post) error {
	ctx = services.WithPostID(ctx, post.ID)
	logger := logging.WithContext(ctx, r.logger)

	record, err := r.store.StartEnrichment(ctx, post.ID, cycleID, post.Title)
	if err != nil {
		return err
	}

	plan := r.resolver.Resolve(resolver.Task{Title: post.Title, Body: post.Content, Hint: post.CategoryHint()})
	logger.Debug("resolved media query",
		logging.String("title", plan.Title),
		logging.String("rule", plan.Rule))

	match, err := r.finder.Find(services.WithStage(ctx, "lookup"), plan)
	if err != nil {
		// Lookup degrades to no media context, it never fails a post.
		logger.Warn("media lookup errored, continuing without media", logging.Error(err))
		match = nil
	}

	article := gemini.Article{PostID: post.ID, Title: post.Title, Body: post.Content, Tags: post.TagNames()}
	content, err := r.enricher.Enrich(services.WithStage(ctx, "enrich"), article, match)
	if err != nil {
		r.recordFailure(ctx, record.ID, post, err)
		return err
	}

	update := wordpress.PostUpdate{Title: content.Title, Excerpt: content.Excerpt, Content: content.Body}
	if err := r.backend.ApplyUpdate(services.WithStage(ctx, "apply"), post.ID, update); err != nil {
		r.recordFailure(ctx, record.ID, post, err)
		return err
	}

	mediaTitle := ""
	if match != nil {
		mediaTitle = match.Title
	}
	if err := r.store.MarkCompleted(ctx, record.ID, content.Credential, content.RequestID, match != nil, mediaTitle); err != nil {
		logger.Warn("recording completion failed", logging.Error(err))
	}
	r.events.ArticleEnriched(ctx, post, match)
	logger.Info("post enriched",
		logging.String(logging.FieldCredential, content.Credential),
		logging.Bool("media_found", match != nil))
	return nil
}

func (r *Runner) recordFailure(ctx context.Context, recordID int64, post wordpress.Post, cause error) {
	logger := logging.WithContext(ctx, r.logger)
	if err := r.store.MarkFailed(ctx, recordID, services.FailureReason(cause), cause.Error()); err != nil {
		logger.Warn("recording failure failed", logging.Error(err))
	}
	r.events.EnrichmentFailed(ctx, post, cause)
	logger.Error("post enrichment failed",
		logging.String("reason", services.FailureReason(cause)),
		logging.Error(cause))
}

func (r *Runner) pause(ctx context.Context) error {
	delay := r.opts.InterItemDelay
	if delay <= 0 {
		return ctx.Err()
	}
	if r.opts.Sleeper != nil {
		r.opts.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
