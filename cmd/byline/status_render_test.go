package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestStatusLinePlain(t *testing.T) {
	got := statusLine("Running", toneBad, "no", false)
	want := fmt.Sprintf("  %-*s%s", statusLabelWidth, "Running", "[fail] no")
	if got != want {
		t.Fatalf("statusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestStatusLineColor(t *testing.T) {
	got := statusLine("Running", toneGood, "yes", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusLineInfoStaysUncolored(t *testing.T) {
	got := statusLine("Ledger DB", toneInfo, "/tmp/byline.db", true)
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("info lines must not be colored, got %q", got)
	}
}

func TestSectionTitleUnderline(t *testing.T) {
	got := sectionTitle("Credentials", false)
	want := "Credentials\n-----------"
	if got != want {
		t.Fatalf("sectionTitle mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
