package services_test

import (
	"errors"
	"strings"
	"testing"

	"byline/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "gemini", "generate", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"gemini", "generate", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "wordpress", "fetch", "", errors.New("io"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if !services.IsRetryable(services.Wrap(services.ErrTransient, "tmdb", "search", "", nil)) {
		t.Fatal("transient errors should be retryable")
	}
	if !services.IsRetryable(services.Wrap(services.ErrMalformedResponse, "gemini", "parse", "", nil)) {
		t.Fatal("malformed responses should be retryable")
	}
	if services.IsRetryable(services.Wrap(services.ErrQuotaExceeded, "gemini", "generate", "", nil)) {
		t.Fatal("quota errors should not be retryable on the same credential")
	}
	if services.IsRetryable(services.Wrap(services.ErrValidation, "resolver", "plan", "", nil)) {
		t.Fatal("validation errors should not be retryable")
	}
}

func TestFailureReasonMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   string
	}{
		{services.ErrAllCredentialsExhausted, "credentials_exhausted"},
		{services.ErrQuotaExceeded, "quota"},
		{services.ErrRetryBudgetExceeded, "retry_budget"},
		{services.ErrMalformedResponse, "malformed_response"},
		{services.ErrValidation, "validation"},
		{services.ErrConfiguration, "configuration"},
		{services.ErrNotFound, "not_found"},
		{services.ErrTimeout, "timeout"},
		{services.ErrTransient, "transient"},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "cycle", "item", "", nil)
		if got := services.FailureReason(err); got != tc.want {
			t.Fatalf("FailureReason(%v) = %q, want %q", tc.marker, got, tc.want)
		}
	}
	if got := services.FailureReason(nil); got != "" {
		t.Fatalf("expected empty reason for nil error, got %q", got)
	}
	if got := services.FailureReason(errors.New("plain")); got != "transient" {
		t.Fatalf("expected transient for unclassified error, got %q", got)
	}
}
