package intent

import (
	"context"
	"strings"
)

// Name identifies one command the assistant knows how to run.
type Name string

const (
	AddTask                Name = "addTask"
	ListTasks              Name = "listTasks"
	MarkTaskDone           Name = "markTaskDone"
	DeleteTask             Name = "deleteTask"
	ListOverdueTasks       Name = "listOverdueTasks"
	RenameTask             Name = "renameTask"
	ListTopPriorities      Name = "listTopPriorities"
	DeleteAllTasks         Name = "deleteAllTasks"
	CompleteAllTasks       Name = "completeAllTasks"
	ClearCompletedTasks    Name = "clearCompletedTasks"
	UpdateTask             Name = "updateTask"
	UpdateAllTasksPriority Name = "updateAllTasksPriority"

	// Other is emitted by the model for anything outside task management.
	Other Name = "other"
)

// Names lists every command in a stable order.
var Names = []Name{
	AddTask,
	ListTasks,
	MarkTaskDone,
	DeleteTask,
	ListOverdueTasks,
	RenameTask,
	ListTopPriorities,
	DeleteAllTasks,
	CompleteAllTasks,
	ClearCompletedTasks,
	UpdateTask,
	UpdateAllTasksPriority,
}

// Field is a slot name as it appears on the wire.
type Field string

const (
	FieldTitle            Field = "title"
	FieldDescription      Field = "description"
	FieldPriority         Field = "priority"
	FieldDueDate          Field = "dueDate"
	FieldTaskIdentifier   Field = "taskIdentifier"
	FieldTimeframe        Field = "timeframe"
	FieldNewTitle         Field = "newTitle"
	FieldLimit            Field = "limit"
	FieldAdditionalTitles Field = "additionalTitles"
)

// Slots holds the values the model extracted. A missing key means the slot
// was not supplied.
type Slots map[Field]string

func (s Slots) Get(f Field) (string, bool) {
	v, ok := s[f]
	return v, ok
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// NormalizeRole maps unknown roles to user.
func NormalizeRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAssistant:
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelRequest is everything a model backend needs for one classification.
type ModelRequest struct {
	System     string
	Messages   []Message
	SchemaName string
	Schema     map[string]any
}

// Model performs the single structured-output call per turn.
type Model interface {
	Classify(ctx context.Context, req ModelRequest) (RawIntent, error)
}
