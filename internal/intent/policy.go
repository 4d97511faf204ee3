package intent

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

const (
	EmptyInputMessage         = "What would you like to do with your tasks?"
	UnknownIntentMessage      = "I can only help with tasks: add, list, mark done, delete, or show overdue. What would you like to do?"
	NoMatchMessage            = "I couldn't match that to a task action. Try: add, list, mark done, delete, or overdue."
	ValidationFallbackMessage = "Please provide the missing or valid details."

	MaxLimit = 100
)

var clarificationHints = map[Field]string{
	FieldTitle:          "What is the task title?",
	FieldDueDate:        "When is it due? (e.g. tomorrow, Friday)",
	FieldPriority:       "What priority: low, medium, or high?",
	FieldTaskIdentifier: "Which task? (title or id)",
	FieldNewTitle:       "What should the new title be?",
	FieldLimit:          "How many tasks? (e.g., 3 for top 3)",
}

// Hint returns the question asked when field is missing.
func Hint(field Field) string {
	if h, ok := clarificationHints[field]; ok {
		return h
	}
	return "Please provide " + string(field) + "."
}

type DecisionKind string

const (
	DecisionClarify DecisionKind = "clarification"
	DecisionRespond DecisionKind = "response"
	DecisionReady   DecisionKind = "tool_call"
)

// Decision is the outcome of checking classifier output against its schema.
// Command is only meaningful when Kind is DecisionReady.
type Decision struct {
	Kind    DecisionKind
	Intent  Name
	Message string
	Command Command
}

// Policy turns raw slots into either a ready command or a question for the user.
type Policy struct {
	loc *time.Location
}

func NewPolicy(loc *time.Location) *Policy {
	if loc == nil {
		loc = time.Local
	}
	return &Policy{loc: loc}
}

func (p *Policy) Decide(name Name, slots Slots) Decision {
	present := Slots{}
	for f, v := range slots {
		if v != "" {
			present[f] = v
		}
	}

	schema, ok := SchemaFor(name)

	var missing []string
	for _, f := range schema.Required {
		if _, has := present[f]; !has {
			missing = append(missing, Hint(f))
		}
	}
	if len(missing) > 0 {
		return Decision{Kind: DecisionClarify, Intent: name, Message: strings.Join(missing, " ")}
	}

	if raw, has := present[FieldLimit]; has {
		if n, valid := coerceLimit(raw); valid {
			present[FieldLimit] = strconv.Itoa(n)
		} else {
			delete(present, FieldLimit)
		}
	}

	if !ok {
		return Decision{Kind: DecisionRespond, Intent: name, Message: NoMatchMessage}
	}

	if verr := schema.Validate(present); verr != nil {
		msg := verr.Message
		if msg == "" {
			msg = ValidationFallbackMessage
		}
		return Decision{Kind: DecisionClarify, Intent: name, Message: msg}
	}

	return Decision{Kind: DecisionReady, Intent: name, Command: p.build(name, schema, present)}
}

// coerceLimit accepts finite integral values in (0, MaxLimit].
func coerceLimit(raw string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	if f != math.Trunc(f) || f <= 0 || f > MaxLimit {
		return 0, false
	}
	return int(f), true
}

func (p *Policy) build(name Name, schema Schema, slots Slots) Command {
	cmd := Command{Name: name}
	for _, f := range schema.Accepted {
		v, ok := slots[f]
		if !ok {
			continue
		}
		switch f {
		case FieldTitle:
			cmd.Title = strings.TrimSpace(v)
		case FieldDescription:
			if d := strings.TrimSpace(v); d != "" {
				cmd.Description = &d
			}
		case FieldPriority:
			cmd.Priority, _ = tasks.ParsePriority(v)
		case FieldDueDate:
			if due, err := ParseDueDate(v, p.loc); err == nil {
				cmd.DueDate = &due
			}
		case FieldTaskIdentifier:
			cmd.TaskIdentifier = strings.TrimSpace(v)
		case FieldNewTitle:
			cmd.NewTitle = strings.TrimSpace(v)
		case FieldTimeframe:
			cmd.Timeframe = strings.Join(strings.Fields(strings.ToLower(v)), " ")
		case FieldLimit:
			cmd.Limit, _ = strconv.Atoi(v)
		case FieldAdditionalTitles:
			cmd.AdditionalTitles = splitTitles(v)
		}
	}
	return cmd
}

func splitTitles(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}
