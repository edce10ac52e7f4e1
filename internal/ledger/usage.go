package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"byline/internal/credentials"
)

var _ credentials.Journal = (*Store)(nil)

// LoadUsage returns the persisted credential quota state for one UTC day.
// Days with no recorded requests yield an empty map.
func (s *Store) LoadUsage(ctx context.Context, day string) (map[string]credentials.UsageRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT credential_id, requests_used, exhausted_until FROM credential_usage WHERE day = ?`,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("query credential usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]credentials.UsageRecord)
	for rows.Next() {
		var (
			id           string
			used         int
			exhaustedRaw sql.NullString
		)
		if err := rows.Scan(&id, &used, &exhaustedRaw); err != nil {
			return nil, err
		}
		record := credentials.UsageRecord{RequestsUsed: used}
		if exhaustedRaw.Valid {
			if exhausted, err := parseTimeString(exhaustedRaw.String); err == nil {
				record.ExhaustedUntil = exhausted
			}
		}
		usage[id] = record
	}
	return usage, rows.Err()
}

// SaveUsage upserts one credential's quota state for a UTC day.
func (s *Store) SaveUsage(ctx context.Context, day, credentialID string, record credentials.UsageRecord) error {
	var exhausted any
	if !record.ExhaustedUntil.IsZero() {
		exhausted = record.ExhaustedUntil.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO credential_usage (credential_id, day, requests_used, exhausted_until, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(credential_id, day) DO UPDATE SET
             requests_used = excluded.requests_used,
             exhausted_until = excluded.exhausted_until,
             updated_at = excluded.updated_at`,
		credentialID,
		day,
		record.RequestsUsed,
		exhausted,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save credential usage: %w", err)
	}
	return nil
}
