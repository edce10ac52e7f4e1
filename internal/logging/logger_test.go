package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"byline/internal/logging"
	"byline/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromSettingsCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewFromSettings("info", "console", dir)
	if err != nil {
		t.Fatalf("NewFromSettings: %v", err)
	}
	logger.Info("startup complete", logging.String("component", "daemon"))

	data, err := os.ReadFile(filepath.Join(dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "startup complete") {
		t.Fatalf("log file missing message, got %q", string(data))
	}
}

func TestConsoleFormatIncludesComponentPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "console",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "cycle")
	scoped.Info("tick", logging.Int("items", 2))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "cycle: tick") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "items=2") {
		t.Fatalf("expected attr rendering, got %q", line)
	}
}

func TestJSONFormatUsesRenamedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("rate limited")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, fragment := range []string{`"ts":`, `"level":"warn"`, `"msg":"rate limited"`} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected %q in %q", fragment, string(data))
		}
	}
}

func TestWithContextCarriesAnnotations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := services.WithPostID(context.Background(), 101)
	ctx = services.WithCycleID(ctx, "c-1")
	logging.WithContext(ctx, logger).Info("processing")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "post_id=101") {
		t.Fatalf("expected post id attr, got %q", line)
	}
	if !strings.Contains(line, "cycle_id=c-1") {
		t.Fatalf("expected cycle id attr, got %q", line)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should disable all levels")
	}
}
