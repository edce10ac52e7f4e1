package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"byline/internal/config"
	"byline/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyCycleStarted(context.Background(), "cycle-1", 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "cycle started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyCycleStarted(context.Background(), "0b7e2c1d-aaaa-bbbb-cccc-000000000000", 4)
			},
			expectTitle:   "Byline - Cycle Started",
			expectMessage: "Started enrichment cycle 0b7e2c1d with 4 eligible posts",
			expectTags:    "byline,cycle,started",
		},
		{
			name: "cycle completed clean",
			notify: func(svc notifications.Service) error {
				return svc.NotifyCycleCompleted(context.Background(), 2, 2, 0, false)
			},
			expectTitle:   "Byline - Cycle Complete",
			expectMessage: "Cycle complete: 2 posts enriched",
			expectTags:    "byline,cycle,completed",
		},
		{
			name: "cycle aborted",
			notify: func(svc notifications.Service) error {
				return svc.NotifyCycleCompleted(context.Background(), 1, 0, 1, true)
			},
			expectTitle:   "Byline - Cycle Aborted",
			expectMessage: "Cycle aborted after 1 posts: 0 succeeded, 1 failed",
			expectTags:    "byline,cycle,completed",
		},
		{
			name: "article enriched with media",
			notify: func(svc notifications.Service) error {
				return svc.NotifyArticleEnriched(context.Background(), "Novo trailer revelado", "King of the Hill")
			},
			expectTitle:   "Byline - Post Enriched",
			expectMessage: "Enriched: Novo trailer revelado\nMedia: King of the Hill",
			expectTags:    "byline,article,enriched",
		},
		{
			name: "credentials exhausted",
			notify: func(svc notifications.Service) error {
				return svc.NotifyCredentialsExhausted(context.Background())
			},
			expectTitle:    "Byline - Credentials Exhausted",
			expectMessage:  "Every API credential is cooling down. Enrichment resumes when a quota window resets.",
			expectTags:     "byline,credentials,exhausted",
			expectPriority: "high",
		},
		{
			name: "error",
			notify: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("failed to reach backend"), "health check")
			},
			expectTitle:    "Byline - Error",
			expectMessage:  "Error with health check: failed to reach backend",
			expectTags:     "byline,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsCategoryToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for muted category: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Cycles = false
	cfg.Notifications.Articles = false
	cfg.Notifications.Credentials = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyCycleStarted(ctx, "cycle-1", 1); err != nil {
		t.Fatalf("muted cycle event errored: %v", err)
	}
	if err := svc.NotifyArticleEnriched(ctx, "Post", ""); err != nil {
		t.Fatalf("muted article event errored: %v", err)
	}
	if err := svc.NotifyCredentialsExhausted(ctx); err != nil {
		t.Fatalf("muted credential event errored: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("boom"), "cycle"); err != nil {
		t.Fatalf("muted error event errored: %v", err)
	}
}
