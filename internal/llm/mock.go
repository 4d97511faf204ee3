package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/aashrith/task-away-assistant/internal/intent"
)

// MockModel is a deterministic keyword classifier for local runs without a
// model endpoint. It only looks at the most recent user message.
type MockModel struct{}

func NewMockModel() *MockModel { return &MockModel{} }

var (
	renamePattern   = regexp.MustCompile(`^rename\s+(.+?)\s+to\s+(.+)$`)
	priorityPattern = regexp.MustCompile(`\b(low|medium|high)\b`)
	numberPattern   = regexp.MustCompile(`\b(\d+)\b`)
	datePattern     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	listSplit       = regexp.MustCompile(`\s*(?:,|;|\band\b)\s*`)
	addPrefixes     = []string{"add ", "create ", "remind me to ", "new task "}
	donePrefixes    = []string{"mark ", "complete ", "finish ", "done with "}
	deletePrefixes  = []string{"delete ", "remove "}
	updatePrefixes  = []string{"update ", "change ", "set "}
	doneSuffixes    = []string{" as done", " as completed", " done", " complete", " completed"}
	updateSuffixes  = []string{" priority", " to low", " to medium", " to high"}
)

func (m *MockModel) Classify(ctx context.Context, req intent.ModelRequest) (intent.RawIntent, error) {
	select {
	case <-ctx.Done():
		return intent.RawIntent{}, ctx.Err()
	default:
	}

	text := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == intent.RoleUser {
			text = req.Messages[i].Content
			break
		}
	}
	return classifyKeywords(text), nil
}

func classifyKeywords(text string) intent.RawIntent {
	original := strings.Join(strings.Fields(text), " ")
	lower := strings.ToLower(original)

	switch {
	case containsAny(lower, "delete all", "remove all", "clear all", "wipe"):
		return intent.RawIntent{Intent: string(intent.DeleteAllTasks)}
	case containsAny(lower, "clear completed", "remove completed", "delete completed", "clear done"):
		return intent.RawIntent{Intent: string(intent.ClearCompletedTasks)}
	case containsAny(lower, "complete all", "mark all", "finish all", "everything done"):
		return intent.RawIntent{Intent: string(intent.CompleteAllTasks)}
	case strings.Contains(lower, "all") && strings.Contains(lower, "priority") && priorityPattern.MatchString(lower):
		return intent.RawIntent{
			Intent:   string(intent.UpdateAllTasksPriority),
			Priority: priorityPattern.FindString(lower),
		}
	case strings.Contains(lower, "overdue"):
		return intent.RawIntent{Intent: string(intent.ListOverdueTasks)}
	case containsAny(lower, "top", "most important", "priorities"):
		out := intent.RawIntent{Intent: string(intent.ListTopPriorities), Timeframe: "today"}
		if strings.Contains(lower, "week") {
			out.Timeframe = "this week"
		}
		if n := numberPattern.FindString(lower); n != "" {
			out.Limit = n
		}
		return out
	}

	if match := renamePattern.FindStringSubmatch(original); match != nil {
		return intent.RawIntent{
			Intent:         string(intent.RenameTask),
			TaskIdentifier: strings.TrimSpace(match[1]),
			NewTitle:       strings.TrimSpace(match[2]),
		}
	}

	if rest, ok := cutPrefix(original, addPrefixes); ok {
		return addIntent(rest)
	}
	if rest, ok := cutPrefix(original, donePrefixes); ok {
		return intent.RawIntent{Intent: string(intent.MarkTaskDone), TaskIdentifier: cutSuffix(rest, doneSuffixes)}
	}
	if rest, ok := cutPrefix(original, deletePrefixes); ok {
		return intent.RawIntent{Intent: string(intent.DeleteTask), TaskIdentifier: rest}
	}
	if rest, ok := cutPrefix(original, updatePrefixes); ok {
		restLower := strings.ToLower(rest)
		return intent.RawIntent{
			Intent:         string(intent.UpdateTask),
			TaskIdentifier: cutSuffix(trimPriorityTail(rest), updateSuffixes),
			Priority:       priorityPattern.FindString(restLower),
			DueDate:        datePattern.FindString(rest),
		}
	}
	if containsAny(lower, "list", "show", "what are my tasks", "my tasks") {
		return intent.RawIntent{Intent: string(intent.ListTasks)}
	}
	return intent.RawIntent{Intent: string(intent.Other)}
}

func addIntent(rest string) intent.RawIntent {
	out := intent.RawIntent{Intent: string(intent.AddTask)}
	lower := strings.ToLower(rest)
	if p := priorityPattern.FindString(lower); p != "" && strings.Contains(lower, p+" priority") {
		out.Priority = p
		rest = strings.TrimSpace(removeFold(rest, "with "+p+" priority"))
		rest = strings.TrimSpace(removeFold(rest, p+" priority"))
	}
	if d := datePattern.FindString(rest); d != "" {
		out.DueDate = d
		rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(strings.Replace(rest, d, "", 1)), "due"))
	}

	var titles []string
	for _, part := range listSplit.Split(rest, -1) {
		if t := strings.TrimSpace(part); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		return out
	}
	out.Title = titles[0]
	out.AdditionalTitles = strings.Join(titles[1:], "\n")
	return out
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func cutPrefix(s string, prefixes []string) (string, bool) {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):]), true
		}
	}
	return "", false
}

func cutSuffix(s string, suffixes []string) string {
	lower := strings.ToLower(s)
	for _, suf := range suffixes {
		if strings.HasSuffix(lower, suf) {
			return strings.TrimSpace(s[:len(s)-len(suf)])
		}
	}
	return strings.TrimSpace(s)
}

func trimPriorityTail(s string) string {
	lower := strings.ToLower(s)
	for _, marker := range []string{" priority to ", " to ", " due "} {
		if i := strings.Index(lower, marker); i > 0 {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

func removeFold(s, sub string) string {
	i := strings.Index(strings.ToLower(s), strings.ToLower(sub))
	if i < 0 {
		return s
	}
	return s[:i] + s[i+len(sub):]
}
