// Package ledger persists enrichment outcomes and cycle summaries in SQLite.
// It backs the status API, the history commands, and the idempotency check
// that keeps already-enriched posts from being rewritten.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"byline/internal/config"
)

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.LedgerPath())
}

// OpenPath opens the ledger at an explicit path.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartCycle records the beginning of a scheduler pass.
func (s *Store) StartCycle(ctx context.Context, cycleID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cycles (cycle_id, started_at) VALUES (?, ?)`,
		cycleID,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// FinishCycle stores the final counters for a scheduler pass.
func (s *Store) FinishCycle(ctx context.Context, cycleID string, processed, succeeded, failed, skipped int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE cycles SET finished_at = ?, processed = ?, succeeded = ?, failed = ?, skipped = ? WHERE cycle_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		processed,
		succeeded,
		failed,
		skipped,
		cycleID,
	)
	if err != nil {
		return fmt.Errorf("finish cycle: %w", err)
	}
	return nil
}

// StartEnrichment inserts a record for a post entering enrichment.
func (s *Store) StartEnrichment(ctx context.Context, postID int64, cycleID, title string) (*Record, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO enrichments (post_id, cycle_id, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		postID,
		cycleID,
		nullableString(title),
		StatusEnriching,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert enrichment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// MarkCompleted finalizes a record after the post was updated successfully.
func (s *Store) MarkCompleted(ctx context.Context, id int64, credential, requestID string, mediaFound bool, mediaTitle string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE enrichments
         SET status = ?, credential = ?, request_id = ?, media_found = ?, media_title = ?,
             failure_reason = NULL, error_message = NULL, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		StatusCompleted,
		nullableString(credential),
		nullableString(requestID),
		boolToInt(mediaFound),
		nullableString(mediaTitle),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes a record after enrichment gave up on the post.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE enrichments
         SET status = ?, failure_reason = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		nullableString(reason),
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// MarkSkipped finalizes a record for a post that was deliberately not touched.
func (s *Store) MarkSkipped(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE enrichments SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		StatusSkipped,
		nullableString(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark skipped: %w", err)
	}
	return nil
}

// GetByID fetches a record by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM enrichments WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// WasEnriched reports whether the post already has a completed enrichment.
func (s *Store) WasEnriched(ctx context.Context, postID int64) (bool, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM enrichments WHERE post_id = ? AND status = ?`,
		postID,
		StatusCompleted,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check enriched: %w", err)
	}
	return count > 0, nil
}

// History returns the most recent records, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM enrichments ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// RecentCycles returns the most recent cycle summaries, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT cycle_id, started_at, finished_at, processed, succeeded, failed, skipped
         FROM cycles ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []CycleSummary
	for rows.Next() {
		var (
			summary     CycleSummary
			startedRaw  string
			finishedRaw sql.NullString
		)
		if err := rows.Scan(&summary.CycleID, &startedRaw, &finishedRaw, &summary.Processed, &summary.Succeeded, &summary.Failed, &summary.Skipped); err != nil {
			return nil, err
		}
		if started, err := parseTimeString(startedRaw); err == nil {
			summary.StartedAt = started
		}
		if finishedRaw.Valid {
			if finished, err := parseTimeString(finishedRaw.String); err == nil {
				summary.FinishedAt = &finished
			}
		}
		cycles = append(cycles, summary)
	}
	return cycles, rows.Err()
}

// MetricsByDay rolls record outcomes up per UTC day for the last n days.
func (s *Store) MetricsByDay(ctx context.Context, days int) ([]DailyMetrics, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT substr(created_at, 1, 10) AS day,
                COUNT(1),
                SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
                SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
                SUM(CASE WHEN media_found = 1 THEN 1 ELSE 0 END)
         FROM enrichments
         WHERE created_at >= ?
         GROUP BY day ORDER BY day DESC`,
		StatusCompleted,
		StatusFailed,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []DailyMetrics
	for rows.Next() {
		var m DailyMetrics
		if err := rows.Scan(&m.Day, &m.Attempted, &m.Enriched, &m.Failed, &m.MediaMatched); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM enrichments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// CheckHealth returns diagnostic information about the ledger database.
func (s *Store) CheckHealth(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("ledger database path is unknown")
	}
	if _, err := os.Stat(s.path); err != nil {
		return health, fmt.Errorf("stat ledger database: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping ledger database: %w", err)
	}
	health.DatabaseReadable = true

	row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM enrichments")
	if err := row.Scan(&health.TotalRecords); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

const recordColumns = "id, post_id, cycle_id, title, status, failure_reason, error_message, credential, request_id, media_found, media_title, created_at, updated_at, completed_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id            int64
		postID        int64
		cycleID       string
		title         sql.NullString
		statusStr     string
		failureReason sql.NullString
		errorMessage  sql.NullString
		credential    sql.NullString
		requestID     sql.NullString
		mediaFound    sql.NullInt64
		mediaTitle    sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		completedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&postID,
		&cycleID,
		&title,
		&statusStr,
		&failureReason,
		&errorMessage,
		&credential,
		&requestID,
		&mediaFound,
		&mediaTitle,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:            id,
		PostID:        postID,
		CycleID:       cycleID,
		Title:         title.String,
		Status:        Status(statusStr),
		FailureReason: failureReason.String,
		ErrorMessage:  errorMessage.String,
		Credential:    credential.String,
		RequestID:     requestID.String,
		MediaTitle:    mediaTitle.String,
	}
	if mediaFound.Valid {
		record.MediaFound = mediaFound.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CompletedAt = &completed
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
