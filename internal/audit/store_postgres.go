package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists turn records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			intent TEXT NOT NULL,
			outcome TEXT NOT NULL,
			user_text TEXT NOT NULL,
			reply TEXT NOT NULL,
			failed BOOLEAN NOT NULL DEFAULT FALSE,
			dry_run BOOLEAN NOT NULL DEFAULT FALSE,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_session_created ON chat_turns (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init audit schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	record = prepare(record)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_turns (id, session_id, intent, outcome, user_text, reply, failed, dry_run, latency_ms, pii_redacted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID,
		record.SessionID,
		record.Intent,
		record.Outcome,
		record.UserText,
		record.Reply,
		record.Failed,
		record.DryRun,
		record.LatencyMS,
		record.PIIRedacted,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, intent, outcome, user_text, reply, failed, dry_run, latency_ms, pii_redacted, created_at
		 FROM chat_turns WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Intent, &r.Outcome, &r.UserText, &r.Reply,
			&r.Failed, &r.DryRun, &r.LatencyMS, &r.PIIRedacted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}

	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
