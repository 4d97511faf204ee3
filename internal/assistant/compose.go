package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

const (
	NoTasksMessage         = "You have no tasks."
	NoOverdueTasksMessage  = "You have no overdue tasks. Great job!"
	NoTopPrioritiesMessage = "You have no priority tasks for this timeframe."
	NoTasksYetMessage      = "There are no tasks yet. Add one first."
	TaskDeletedMessage     = "Task deleted successfully."

	taskListHeader       = "Here are your tasks:"
	overdueListHeader    = "Here are your overdue tasks:"
	topPriorityHeader    = "Here are your top priority tasks:"
	dateLayout           = "Jan 2, 2006"
	previewLimit         = 5
	exactTitleReminder   = "Reply with the exact task title."
	whichOneDoYouMean    = "Which one do you mean?"
	notImplementedFormat = "Action \"%s\" is not yet implemented."
)

var statusLabels = map[tasks.Status]string{
	tasks.StatusCompleted:  "[completed]",
	tasks.StatusInProgress: "[in progress]",
	tasks.StatusPending:    "[pending]",
}

// Composer renders deterministic replies. Dates are shown in loc.
type Composer struct {
	loc *time.Location
}

func NewComposer(loc *time.Location) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{loc: loc}
}

func (c *Composer) Location() *time.Location { return c.loc }

func (c *Composer) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(dateLayout)
}

// FormatTasks renders numbered entries separated by a blank line.
func (c *Composer) FormatTasks(list []tasks.Task) string {
	entries := make([]string, 0, len(list))
	for i, t := range list {
		status, ok := statusLabels[t.Status]
		if !ok {
			status = "[" + string(t.Status) + "]"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d. %s [%s] **%s**", i+1, status, t.Priority, t.Title)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " (due: %s)", c.FormatDate(*t.DueDate))
		}
		if t.Description != nil && *t.Description != "" {
			b.WriteString("\n   ")
			b.WriteString(*t.Description)
		}
		entries = append(entries, b.String())
	}
	return strings.Join(entries, "\n\n")
}

func (c *Composer) listMessage(header, empty string, list []tasks.Task) string {
	if len(list) == 0 {
		return empty
	}
	return header + "\n\n" + c.FormatTasks(list)
}

func (c *Composer) TaskList(list []tasks.Task) string {
	return c.listMessage(taskListHeader, NoTasksMessage, list)
}

func (c *Composer) OverdueList(list []tasks.Task) string {
	return c.listMessage(overdueListHeader, NoOverdueTasksMessage, list)
}

func (c *Composer) TopPriorityList(list []tasks.Task) string {
	return c.listMessage(topPriorityHeader, NoTopPrioritiesMessage, list)
}

// PronounPick asks the user to choose among all tasks when a pronoun has
// nothing to refer to.
func (c *Composer) PronounPick(all []tasks.Task) string {
	lines := make([]string, 0, previewLimit)
	for i, t := range firstN(all, previewLimit) {
		line := fmt.Sprintf("%d. %s", i+1, t.Title)
		if t.DueDate != nil {
			line += fmt.Sprintf(" (due %s)", c.FormatDate(*t.DueDate))
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("You have %d tasks. %s\n\n%s\n\n%s", len(all), whichOneDoYouMean, strings.Join(lines, "\n"), exactTitleReminder)
}

func (c *Composer) Ambiguous(identifier, action string, candidates []tasks.Task) string {
	lines := make([]string, 0, previewLimit)
	for i, t := range firstN(candidates, previewLimit) {
		parts := []string{fmt.Sprintf("%d. %s", i+1, t.Title)}
		if t.DueDate != nil {
			parts = append(parts, fmt.Sprintf("(due %s)", c.FormatDate(*t.DueDate)))
		}
		if t.Priority != "" {
			parts = append(parts, "["+string(t.Priority)+"]")
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join([]string{
		fmt.Sprintf("I found several tasks matching \"%s\" for %s:", identifier, action),
		"",
		strings.Join(lines, "\n"),
		"",
		whichOneDoYouMean + " " + exactTitleReminder,
	}, "\n")
}

func NotFoundMessage(identifier string) string {
	return fmt.Sprintf("I couldn't find a task matching \"%s\". Please check the task name or try listing your tasks first.", identifier)
}

func TaskCreatedMessage(title string) string {
	return fmt.Sprintf("Task \"%s\" created successfully.", title)
}

func TaskCompletedMessage(title string) string {
	return fmt.Sprintf("Task \"%s\" marked as completed.", title)
}

func TaskRenamedMessage(title string) string {
	return fmt.Sprintf("Task renamed to \"%s\" successfully.", title)
}

func TaskUpdatedMessage(title string, parts []string) string {
	if len(parts) == 0 {
		return fmt.Sprintf("Successfully updated task \"%s\".", title)
	}
	return fmt.Sprintf("Successfully updated task \"%s\": %s.", title, strings.Join(parts, ", "))
}

func NotImplementedMessage(name string) string {
	return fmt.Sprintf(notImplementedFormat, name)
}

func pluralTasks(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}

func DeletedAllMessage(n int) string {
	if n == 0 {
		return "No tasks to delete."
	}
	return fmt.Sprintf("Deleted %s.", pluralTasks(n))
}

func CompletedAllMessage(n int) string {
	if n == 0 {
		return "No tasks to complete."
	}
	return fmt.Sprintf("Marked %s as completed.", pluralTasks(n))
}

func ClearedCompletedMessage(n int) string {
	switch n {
	case 0:
		return "No completed tasks to clear."
	case 1:
		return "Cleared 1 completed task."
	default:
		return fmt.Sprintf("Cleared %d completed tasks.", n)
	}
}

func UpdatedAllPriorityMessage(p tasks.Priority, n int) string {
	if n == 0 {
		return "No tasks to update."
	}
	return fmt.Sprintf("Successfully updated priority to %s for %s.", p, pluralTasks(n))
}

func firstN(list []tasks.Task, n int) []tasks.Task {
	if len(list) > n {
		return list[:n]
	}
	return list
}
