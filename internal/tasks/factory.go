package tasks

import (
	"context"
	"strings"
)

type StoreOptions struct {
	DatabaseURL string
	SQLitePath  string
}

// NewStore picks postgres when a database URL is configured, then sqlite when a
// path is configured, otherwise an in-memory store.
func NewStore(ctx context.Context, opts StoreOptions) (Store, error) {
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		return NewPostgresStore(ctx, opts.DatabaseURL, UUIDs())
	}
	if strings.TrimSpace(opts.SQLitePath) != "" {
		return NewSQLiteStore(opts.SQLitePath, UUIDs())
	}
	return NewMemoryStore(SequenceIDs()), nil
}

func Mode(store Store) string {
	switch store.(type) {
	case *PostgresStore:
		return "postgres"
	case *SQLiteStore:
		return "sqlite"
	case *MemoryStore:
		return "in-memory"
	case nil:
		return "disabled"
	default:
		return "custom"
	}
}
