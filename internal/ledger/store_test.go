package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"byline/internal/credentials"
	"byline/internal/ledger"
)

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.OpenPath(filepath.Join(t.TempDir(), "byline.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnrichmentLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record, err := store.StartEnrichment(ctx, 101, "cycle-1", "Post Title")
	if err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}
	if record.Status != ledger.StatusEnriching {
		t.Fatalf("unexpected status %q", record.Status)
	}
	if record.PostID != 101 || record.CycleID != "cycle-1" {
		t.Fatalf("unexpected record %+v", record)
	}

	enriched, err := store.WasEnriched(ctx, 101)
	if err != nil {
		t.Fatalf("WasEnriched: %v", err)
	}
	if enriched {
		t.Fatal("in-flight record must not count as enriched")
	}

	if err := store.MarkCompleted(ctx, record.ID, "primary", "req-1", true, "King of the Hill"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	record, err = store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected status %q", record.Status)
	}
	if record.Credential != "primary" || record.RequestID != "req-1" {
		t.Fatalf("attribution not persisted: %+v", record)
	}
	if !record.MediaFound || record.MediaTitle != "King of the Hill" {
		t.Fatalf("media context not persisted: %+v", record)
	}
	if record.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	enriched, err = store.WasEnriched(ctx, 101)
	if err != nil {
		t.Fatalf("WasEnriched: %v", err)
	}
	if !enriched {
		t.Fatal("completed record must count as enriched")
	}
}

func TestMarkFailedKeepsReason(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record, err := store.StartEnrichment(ctx, 202, "cycle-1", "")
	if err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}
	if err := store.MarkFailed(ctx, record.ID, "quota", "quota exceeded: provider signalled quota limit (429)"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	record, err = store.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record.Status != ledger.StatusFailed {
		t.Fatalf("unexpected status %q", record.Status)
	}
	if record.FailureReason != "quota" {
		t.Fatalf("unexpected reason %q", record.FailureReason)
	}
	if record.ErrorMessage == "" {
		t.Fatal("expected error message")
	}

	enriched, err := store.WasEnriched(ctx, 202)
	if err != nil {
		t.Fatalf("WasEnriched: %v", err)
	}
	if enriched {
		t.Fatal("failed record must not count as enriched")
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, postID := range []int64{1, 2, 3} {
		if _, err := store.StartEnrichment(ctx, postID, "cycle-1", ""); err != nil {
			t.Fatalf("StartEnrichment: %v", err)
		}
	}

	records, err := store.History(ctx, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].PostID != 3 || records[1].PostID != 2 {
		t.Fatalf("unexpected order: %d, %d", records[0].PostID, records[1].PostID)
	}
}

func TestCycleSummaries(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.StartCycle(ctx, "cycle-1"); err != nil {
		t.Fatalf("StartCycle: %v", err)
	}
	if err := store.FinishCycle(ctx, "cycle-1", 2, 1, 1, 0); err != nil {
		t.Fatalf("FinishCycle: %v", err)
	}

	cycles, err := store.RecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	summary := cycles[0]
	if summary.CycleID != "cycle-1" || summary.Processed != 2 || summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.FinishedAt == nil {
		t.Fatal("expected finish timestamp")
	}
}

func TestMetricsByDayRollsUpOutcomes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.StartEnrichment(ctx, 1, "cycle-1", "")
	if err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}
	if err := store.MarkCompleted(ctx, first.ID, "primary", "req-1", true, "Duna"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	second, err := store.StartEnrichment(ctx, 2, "cycle-1", "")
	if err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}
	if err := store.MarkFailed(ctx, second.ID, "transient", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	metrics, err := store.MetricsByDay(ctx, 7)
	if err != nil {
		t.Fatalf("MetricsByDay: %v", err)
	}
	if len(metrics) != 1 {
		t.Fatalf("expected 1 day, got %d", len(metrics))
	}
	day := metrics[0]
	if day.Attempted != 2 || day.Enriched != 1 || day.Failed != 1 || day.MediaMatched != 1 {
		t.Fatalf("unexpected rollup %+v", day)
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record, err := store.StartEnrichment(ctx, 1, "cycle-1", "")
	if err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}
	if err := store.MarkSkipped(ctx, record.ID, "already_enriched"); err != nil {
		t.Fatalf("MarkSkipped: %v", err)
	}
	if _, err := store.StartEnrichment(ctx, 2, "cycle-1", ""); err != nil {
		t.Fatalf("StartEnrichment: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[ledger.StatusSkipped] != 1 || stats[ledger.StatusEnriching] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCredentialUsageRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	exhausted := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := store.SaveUsage(ctx, "2026-03-01", "primary", credentials.UsageRecord{RequestsUsed: 12}); err != nil {
		t.Fatalf("SaveUsage: %v", err)
	}
	if err := store.SaveUsage(ctx, "2026-03-01", "backup-1", credentials.UsageRecord{RequestsUsed: 45, ExhaustedUntil: exhausted}); err != nil {
		t.Fatalf("SaveUsage: %v", err)
	}
	// Counter updates replace the existing row for the day.
	if err := store.SaveUsage(ctx, "2026-03-01", "primary", credentials.UsageRecord{RequestsUsed: 13}); err != nil {
		t.Fatalf("SaveUsage update: %v", err)
	}

	usage, err := store.LoadUsage(ctx, "2026-03-01")
	if err != nil {
		t.Fatalf("LoadUsage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("expected 2 records, got %d", len(usage))
	}
	if usage["primary"].RequestsUsed != 13 || !usage["primary"].ExhaustedUntil.IsZero() {
		t.Fatalf("unexpected primary record %+v", usage["primary"])
	}
	if usage["backup-1"].RequestsUsed != 45 || !usage["backup-1"].ExhaustedUntil.Equal(exhausted) {
		t.Fatalf("unexpected backup record %+v", usage["backup-1"])
	}

	other, err := store.LoadUsage(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("LoadUsage other day: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no records for other day, got %+v", other)
	}
}

func TestCheckHealth(t *testing.T) {
	store := newStore(t)

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health %+v", health)
	}
}
