package intent

import (
	"time"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

// Command is a validated request ready for dispatch. Zero values and nil
// pointers mean the user did not supply the field.
type Command struct {
	Name             Name
	Title            string
	Description      *string
	Priority         tasks.Priority
	DueDate          *time.Time
	TaskIdentifier   string
	NewTitle         string
	Timeframe        string
	Limit            int
	AdditionalTitles []string
}

// Args renders the supplied fields for a tool_call payload.
func (c Command) Args() map[string]any {
	args := map[string]any{}
	if c.Title != "" {
		args[string(FieldTitle)] = c.Title
	}
	if c.Description != nil {
		args[string(FieldDescription)] = *c.Description
	}
	if c.Priority != "" {
		args[string(FieldPriority)] = string(c.Priority)
	}
	if c.DueDate != nil {
		args[string(FieldDueDate)] = c.DueDate.Format(time.RFC3339)
	}
	if c.TaskIdentifier != "" {
		args[string(FieldTaskIdentifier)] = c.TaskIdentifier
	}
	if c.NewTitle != "" {
		args[string(FieldNewTitle)] = c.NewTitle
	}
	if c.Timeframe != "" {
		args[string(FieldTimeframe)] = c.Timeframe
	}
	if c.Limit > 0 {
		args[string(FieldLimit)] = c.Limit
	}
	if len(c.AdditionalTitles) > 0 {
		args[string(FieldAdditionalTitles)] = append([]string(nil), c.AdditionalTitles...)
	}
	return args
}
