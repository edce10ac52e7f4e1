package notifications

import (
	"context"
	"log/slog"

	"byline/internal/cycle"
	"byline/internal/logging"
	"byline/internal/media"
	"byline/internal/services/wordpress"
)

// Bridge adapts the notification service to the cycle event surface.
// Delivery failures are logged, never propagated into the cycle.
type Bridge struct {
	svc    Service
	logger *slog.Logger
}

// NewBridge wires a notification service into the cycle runner.
func NewBridge(svc Service, logger *slog.Logger) *Bridge {
	if svc == nil {
		svc = noopService{}
	}
	return &Bridge{svc: svc, logger: logging.NewComponentLogger(logger, "notifications")}
}

func (b *Bridge) CycleStarted(ctx context.Context, cycleID string, eligible int) {
	b.deliver(ctx, b.svc.NotifyCycleStarted(ctx, cycleID, eligible))
}

func (b *Bridge) CycleCompleted(ctx context.Context, result cycle.Result) {
	b.deliver(ctx, b.svc.NotifyCycleCompleted(ctx, result.Processed, result.Succeeded, result.Failed, result.Aborted))
}

func (b *Bridge) ArticleEnriched(ctx context.Context, post wordpress.Post, match *media.Match) {
	mediaTitle := ""
	if match != nil {
		mediaTitle = match.Title
	}
	b.deliver(ctx, b.svc.NotifyArticleEnriched(ctx, post.Title, mediaTitle))
}

func (b *Bridge) EnrichmentFailed(ctx context.Context, post wordpress.Post, cause error) {
	b.deliver(ctx, b.svc.NotifyEnrichmentFailed(ctx, post.Title, cause))
}

func (b *Bridge) CredentialsExhausted(ctx context.Context) {
	b.deliver(ctx, b.svc.NotifyCredentialsExhausted(ctx))
}

func (b *Bridge) deliver(ctx context.Context, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}
	b.logger.Warn("notification delivery failed", logging.Error(err))
}
