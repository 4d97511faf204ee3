package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one processed chat turn. Free text is redacted before it is
// stored.
type Record struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Intent      string    `json:"intent"`
	Outcome     string    `json:"outcome"`
	UserText    string    `json:"user_text"`
	Reply       string    `json:"reply"`
	Failed      bool      `json:"failed"`
	DryRun      bool      `json:"dry_run"`
	LatencyMS   int64     `json:"latency_ms"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists and retrieves turn records.
type Store interface {
	Save(ctx context.Context, record Record) error
	Recent(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Close() error
}

const DefaultRecentLimit = 20

func prepare(record Record) Record {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	var userChanged, replyChanged bool
	record.UserText, userChanged = RedactPII(record.UserText)
	record.Reply, replyChanged = RedactPII(record.Reply)
	record.PIIRedacted = record.PIIRedacted || userChanged || replyChanged
	return record
}
