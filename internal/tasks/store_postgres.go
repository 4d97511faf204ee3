package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	ids  IDGenerator
}

func NewPostgresStore(ctx context.Context, databaseURL string, ids IDGenerator) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initTaskSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if ids == nil {
		ids = UUIDs()
	}
	return &PostgresStore{pool: pool, ids: ids}, nil
}

func initTaskSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_tasks (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			due_date TIMESTAMPTZ NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_tasks_seq ON chat_tasks (seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init task schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const taskColumns = `id, title, description, status, priority, due_date, source, created_at, updated_at`

func (s *PostgresStore) Add(ctx context.Context, task Task) (Task, error) {
	task = task.Clone()
	applyDefaults(&task, time.Now().UTC())
	task.ID = s.ids()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_tasks (`+taskColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.DueDate,
		string(task.Source),
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM chat_tasks WHERE id=$1`,
		strings.TrimSpace(id),
	)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM chat_tasks ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0, 16)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, task Task) (Task, error) {
	task = task.Clone()
	task.UpdatedAt = time.Now().UTC()

	row := s.pool.QueryRow(ctx,
		`UPDATE chat_tasks SET
			title=$2,
			description=$3,
			status=$4,
			priority=$5,
			due_date=$6,
			source=$7,
			updated_at=$8
		 WHERE id=$1
		 RETURNING created_at`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.DueDate,
		string(task.Source),
		task.UpdatedAt,
	)
	if err := row.Scan(&task.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_tasks WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chat_tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		task     Task
		status   string
		priority string
		source   string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&status,
		&priority,
		&task.DueDate,
		&source,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return Task{}, err
	}
	task.Status = Status(status)
	task.Priority = Priority(priority)
	task.Source = Source(source)
	return task, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
