package intent

// RawIntent is the structured object exchanged with the model. Strict schema
// mode requires every property, so an empty string stands for "not supplied".
type RawIntent struct {
	Intent           string `json:"intent"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	DueDate          string `json:"dueDate"`
	TaskIdentifier   string `json:"taskIdentifier"`
	Timeframe        string `json:"timeframe"`
	NewTitle         string `json:"newTitle"`
	Limit            string `json:"limit"`
	AdditionalTitles string `json:"additionalTitles"`
}

const OutputSchemaName = "task_intent"

// Slots drops every empty-string slot.
func (r RawIntent) Slots() Slots {
	out := Slots{}
	for field, v := range map[Field]string{
		FieldTitle:            r.Title,
		FieldDescription:      r.Description,
		FieldPriority:         r.Priority,
		FieldDueDate:          r.DueDate,
		FieldTaskIdentifier:   r.TaskIdentifier,
		FieldTimeframe:        r.Timeframe,
		FieldNewTitle:         r.NewTitle,
		FieldLimit:            r.Limit,
		FieldAdditionalTitles: r.AdditionalTitles,
	} {
		if v != "" {
			out[field] = v
		}
	}
	return out
}

var wireFields = []Field{
	FieldTitle,
	FieldDescription,
	FieldPriority,
	FieldDueDate,
	FieldTaskIdentifier,
	FieldTimeframe,
	FieldNewTitle,
	FieldLimit,
	FieldAdditionalTitles,
}

// OutputSchema is the strict JSON schema for RawIntent.
func OutputSchema() map[string]any {
	enum := make([]any, 0, len(Names)+1)
	for _, n := range Names {
		enum = append(enum, string(n))
	}
	enum = append(enum, string(Other))

	props := map[string]any{
		"intent": map[string]any{"type": "string", "enum": enum},
	}
	required := []any{"intent"}
	for _, f := range wireFields {
		props[string(f)] = map[string]any{"type": "string"}
		required = append(required, string(f))
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// SystemPrompt instructs the model how to fill RawIntent.
const SystemPrompt = `You are an intent classifier for a task manager. Output only the user's intent and extracted parameters. No explanation.
Intents:
- addTask: create a task. Extract title, and description, priority (low|medium|high) and dueDate when given. If the user lists several tasks, put the first in title and the rest in additionalTitles, one per line.
- listTasks: show all tasks.
- markTaskDone: complete a task. Put the task title, id or reference ("that", "it") in taskIdentifier.
- deleteTask: delete one task. Fill taskIdentifier.
- listOverdueTasks: show tasks past their due date.
- renameTask: fill taskIdentifier with the current task and newTitle with the new title.
- listTopPriorities: most important tasks. timeframe is "today" or "this week"; limit is a number of tasks as digits.
- deleteAllTasks: delete every task.
- completeAllTasks: mark every task as done.
- clearCompletedTasks: delete the completed tasks.
- updateTask: change priority, dueDate or description of one task. Fill taskIdentifier.
- updateAllTasksPriority: set the same priority on every task. Fill priority.
- other: anything unrelated to tasks.
For dates use ISO-8601. Use an empty string for every parameter the user did not provide.`
