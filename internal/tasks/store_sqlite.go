package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type taskRow struct {
	ID          string  `gorm:"column:id;primaryKey"`
	Title       string  `gorm:"column:title;not null"`
	Description *string `gorm:"column:description"`
	Status      string  `gorm:"column:status;not null;default:'pending'"`
	Priority    string  `gorm:"column:priority;not null;default:'medium'"`
	DueDateNS   *int64  `gorm:"column:due_date_ns"`
	Source      string  `gorm:"column:source;not null;default:'assistant'"`
	CreatedAtNS int64   `gorm:"column:created_at_ns;not null;default:0;index"`
	UpdatedAtNS int64   `gorm:"column:updated_at_ns;not null;default:0"`
}

func (taskRow) TableName() string { return "chat_tasks" }

// SQLiteStore persists tasks in a local SQLite file through gorm.
type SQLiteStore struct {
	db  *gorm.DB
	ids IDGenerator
}

func NewSQLiteStore(path string, ids IDGenerator) (*SQLiteStore, error) {
	gdb, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := gdb.AutoMigrate(&taskRow{}); err != nil {
		closeGorm(gdb)
		return nil, fmt.Errorf("migrate task schema: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		closeGorm(gdb)
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if ids == nil {
		ids = UUIDs()
	}
	return &SQLiteStore{db: gdb, ids: ids}, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	path = strings.TrimSpace(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if err := gdb.Exec(pragma).Error; err != nil {
			closeGorm(gdb)
			return nil, err
		}
	}
	return gdb, nil
}

func (s *SQLiteStore) Add(ctx context.Context, task Task) (Task, error) {
	task = task.Clone()
	applyDefaults(&task, time.Now().UTC())
	task.ID = s.ids()

	row := toRow(task)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return fromRow(row), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Task, error) {
	var rows []taskRow
	if err := s.db.WithContext(ctx).Order("created_at_ns ASC").Order("rowid ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (s *SQLiteStore) Update(ctx context.Context, task Task) (Task, error) {
	task = task.Clone()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing taskRow
		if err := tx.Where("id = ?", task.ID).First(&existing).Error; err != nil {
			return err
		}
		task.CreatedAt = time.Unix(0, existing.CreatedAtNS).UTC()
		task.UpdatedAt = time.Now().UTC()
		row := toRow(task)
		return tx.Save(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&taskRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&taskRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	closeGorm(s.db)
	return nil
}

func closeGorm(gdb *gorm.DB) {
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func toRow(task Task) taskRow {
	row := taskRow{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		Source:      string(task.Source),
		CreatedAtNS: task.CreatedAt.UnixNano(),
		UpdatedAtNS: task.UpdatedAt.UnixNano(),
	}
	if task.DueDate != nil {
		ns := task.DueDate.UnixNano()
		row.DueDateNS = &ns
	}
	return row
}

func fromRow(row taskRow) Task {
	task := Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Status:      Status(row.Status),
		Priority:    Priority(row.Priority),
		Source:      Source(row.Source),
		CreatedAt:   time.Unix(0, row.CreatedAtNS).UTC(),
		UpdatedAt:   time.Unix(0, row.UpdatedAtNS).UTC(),
	}
	if row.DueDateNS != nil {
		due := time.Unix(0, *row.DueDateNS).UTC()
		task.DueDate = &due
	}
	return task
}
