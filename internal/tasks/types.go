package tasks

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Source string

const (
	SourceUser      Source = "user"
	SourceAssistant Source = "assistant"
)

// ParsePriority accepts low, medium or high in any letter case.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return "", false
	}
}

// Rank orders priorities so that high sorts before medium before low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// Task is a single entry of the user's task list.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Source      Source     `json:"source"`
}

func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}

func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Overdue reports whether the task has a due date before now and is still open.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed() {
		return false
	}
	return t.DueDate.Before(now)
}

// applyDefaults fills the fields every store sets on insert.
func applyDefaults(task *Task, now time.Time) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Source == "" {
		task.Source = SourceAssistant
	}
	task.CreatedAt = now
	task.UpdatedAt = now
}
