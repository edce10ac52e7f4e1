package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"byline/internal/config"
)

const userAgent = "Byline-Go/0.1.0"

// Service defines the notification surface exposed to the enrichment cycle.
type Service interface {
	NotifyCycleStarted(ctx context.Context, cycleID string, eligible int) error
	NotifyCycleCompleted(ctx context.Context, processed, succeeded, failed int, aborted bool) error
	NotifyArticleEnriched(ctx context.Context, postTitle, mediaTitle string) error
	NotifyEnrichmentFailed(ctx context.Context, postTitle string, cause error) error
	NotifyCredentialsExhausted(ctx context.Context) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		cycles:      cfg.Notifications.Cycles,
		articles:    cfg.Notifications.Articles,
		credentials: cfg.Notifications.Credentials,
		errors:      cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	cycles      bool
	articles    bool
	credentials bool
	errors      bool
}

func (n *ntfyService) NotifyCycleStarted(ctx context.Context, cycleID string, eligible int) error {
	if !n.cycles {
		return nil
	}
	data := payload{
		title:   "Byline - Cycle Started",
		message: fmt.Sprintf("Started enrichment cycle %s with %d eligible posts", shortID(cycleID), eligible),
		tags:    []string{"byline", "cycle", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCycleCompleted(ctx context.Context, processed, succeeded, failed int, aborted bool) error {
	if !n.cycles {
		return nil
	}
	var title, message string
	switch {
	case aborted:
		title = "Byline - Cycle Aborted"
		message = fmt.Sprintf("Cycle aborted after %d posts: %d succeeded, %d failed", processed, succeeded, failed)
	case failed > 0:
		title = "Byline - Cycle Complete (with errors)"
		message = fmt.Sprintf("Cycle complete: %d succeeded, %d failed", succeeded, failed)
	default:
		title = "Byline - Cycle Complete"
		message = fmt.Sprintf("Cycle complete: %d posts enriched", succeeded)
	}
	data := payload{
		title:   title,
		message: message,
		tags:    []string{"byline", "cycle", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyArticleEnriched(ctx context.Context, postTitle, mediaTitle string) error {
	if !n.articles {
		return nil
	}
	postTitle = strings.TrimSpace(postTitle)
	message := fmt.Sprintf("Enriched: %s", postTitle)
	if mediaTitle = strings.TrimSpace(mediaTitle); mediaTitle != "" {
		message = fmt.Sprintf("%s\nMedia: %s", message, mediaTitle)
	}
	data := payload{
		title:   "Byline - Post Enriched",
		message: message,
		tags:    []string{"byline", "article", "enriched"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyEnrichmentFailed(ctx context.Context, postTitle string, cause error) error {
	if !n.articles {
		return nil
	}
	postTitle = strings.TrimSpace(postTitle)
	message := fmt.Sprintf("Enrichment failed: %s", postTitle)
	if cause != nil {
		message = fmt.Sprintf("%s\n%s", message, strings.TrimSpace(cause.Error()))
	}
	data := payload{
		title:   "Byline - Enrichment Failed",
		message: message,
		tags:    []string{"byline", "article", "failed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCredentialsExhausted(ctx context.Context) error {
	if !n.credentials {
		return nil
	}
	data := payload{
		title:    "Byline - Credentials Exhausted",
		message:  "Every API credential is cooling down. Enrichment resumes when a quota window resets.",
		tags:     []string{"byline", "credentials", "exhausted"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Byline - Error",
		message:  builder.String(),
		tags:     []string{"byline", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Byline - Test",
		message:  "Notification system test",
		tags:     []string{"byline", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyCycleStarted(context.Context, string, int) error             { return nil }
func (noopService) NotifyCycleCompleted(context.Context, int, int, int, bool) error   { return nil }
func (noopService) NotifyArticleEnriched(context.Context, string, string) error       { return nil }
func (noopService) NotifyEnrichmentFailed(context.Context, string, error) error       { return nil }
func (noopService) NotifyCredentialsExhausted(context.Context) error                  { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
