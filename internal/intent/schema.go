package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

type rule struct {
	field   Field
	message string
	valid   func(string) bool
}

// Schema declares the fields a command accepts and the constraints on them.
type Schema struct {
	Required []Field
	Accepted []Field
	rules    []rule
}

// ValidationError carries the first failed constraint.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (s Schema) required(f Field) bool {
	for _, r := range s.Required {
		if r == f {
			return true
		}
	}
	return false
}

// Validate checks rules in declaration order and reports the first failure.
func (s Schema) Validate(slots Slots) *ValidationError {
	for _, r := range s.rules {
		v, ok := slots[r.field]
		if !ok {
			if s.required(r.field) {
				return &ValidationError{Field: r.field, Message: r.message}
			}
			continue
		}
		if !r.valid(v) {
			return &ValidationError{Field: r.field, Message: r.message}
		}
	}
	return nil
}

func nonBlank(v string) bool { return strings.TrimSpace(v) != "" }

func validPriority(v string) bool {
	_, ok := tasks.ParsePriority(v)
	return ok
}

func validDueDate(v string) bool {
	_, err := ParseDueDate(v, time.UTC)
	return err == nil
}

func anyText(string) bool { return true }

var (
	titleRule           = rule{FieldTitle, "Task title is required", nonBlank}
	identifierRule      = rule{FieldTaskIdentifier, "Task title or id is required", nonBlank}
	newTitleRule        = rule{FieldNewTitle, "New title is required", nonBlank}
	priorityRule        = rule{FieldPriority, "Priority must be low, medium, or high", validPriority}
	dueDateRule         = rule{FieldDueDate, "Due date must be an ISO-8601 date (e.g. 2025-01-31)", validDueDate}
	descriptionRule     = rule{FieldDescription, "Description must be text", anyText}
	timeframeRule       = rule{FieldTimeframe, "Timeframe must be text", anyText}
	additionalTitleRule = rule{FieldAdditionalTitles, "Additional titles must be text", anyText}
)

var schemas = map[Name]Schema{
	AddTask: {
		Required: []Field{FieldTitle},
		Accepted: []Field{FieldTitle, FieldDescription, FieldPriority, FieldDueDate, FieldAdditionalTitles},
		rules:    []rule{titleRule, descriptionRule, priorityRule, dueDateRule, additionalTitleRule},
	},
	ListTasks: {},
	MarkTaskDone: {
		Required: []Field{FieldTaskIdentifier},
		Accepted: []Field{FieldTaskIdentifier},
		rules:    []rule{identifierRule},
	},
	DeleteTask: {
		Required: []Field{FieldTaskIdentifier},
		Accepted: []Field{FieldTaskIdentifier},
		rules:    []rule{identifierRule},
	},
	ListOverdueTasks: {},
	RenameTask: {
		Required: []Field{FieldTaskIdentifier, FieldNewTitle},
		Accepted: []Field{FieldTaskIdentifier, FieldNewTitle},
		rules:    []rule{identifierRule, newTitleRule},
	},
	ListTopPriorities: {
		Accepted: []Field{FieldTimeframe, FieldLimit},
		rules:    []rule{timeframeRule},
	},
	DeleteAllTasks:      {},
	CompleteAllTasks:    {},
	ClearCompletedTasks: {},
	UpdateTask: {
		Required: []Field{FieldTaskIdentifier},
		Accepted: []Field{FieldTaskIdentifier, FieldPriority, FieldDueDate, FieldDescription},
		rules:    []rule{identifierRule, priorityRule, dueDateRule, descriptionRule},
	},
	UpdateAllTasksPriority: {
		Required: []Field{FieldPriority},
		Accepted: []Field{FieldPriority},
		rules:    []rule{priorityRule},
	},
}

// SchemaFor returns the schema registered for name.
func SchemaFor(name Name) (Schema, bool) {
	s, ok := schemas[name]
	return s, ok
}

var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an ISO-8601 date or date-time. Values without a zone
// are read in loc.
func ParseDueDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
