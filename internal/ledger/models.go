package ledger

import "time"

// Status tracks an enrichment attempt through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEnriching Status = "enriching"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Record is one enrichment attempt for one post.
type Record struct {
	ID            int64      `json:"id"`
	PostID        int64      `json:"post_id"`
	CycleID       string     `json:"cycle_id"`
	Title         string     `json:"title"`
	Status        Status     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	Credential    string     `json:"credential,omitempty"`
	RequestID     string     `json:"request_id,omitempty"`
	MediaFound    bool       `json:"media_found"`
	MediaTitle    string     `json:"media_title,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// CycleSummary aggregates one scheduler pass.
type CycleSummary struct {
	CycleID    string     `json:"cycle_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
}

// DailyMetrics rolls enrichment outcomes up per UTC day.
type DailyMetrics struct {
	Day          string `json:"day"`
	Attempted    int    `json:"attempted"`
	Enriched     int    `json:"enriched"`
	Failed       int    `json:"failed"`
	MediaMatched int    `json:"media_matched"`
}

// HealthSummary describes ledger state for diagnostics.
type HealthSummary struct {
	DBPath           string `json:"db_path"`
	DatabaseReadable bool   `json:"database_readable"`
	TotalRecords     int    `json:"total_records"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Error            string `json:"error,omitempty"`
}
