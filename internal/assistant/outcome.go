package assistant

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous reference")
	ErrInvalid   = errors.New("invalid request")
	ErrInternal  = errors.New("internal failure")
)

type OutcomeType string

const (
	OutcomeClarification OutcomeType = "clarification"
	OutcomeResponse      OutcomeType = "response"
	OutcomeToolCall      OutcomeType = "tool_call"
)

type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Outcome is the terminal result of one turn.
type Outcome struct {
	Type     OutcomeType `json:"type"`
	Message  string      `json:"message,omitempty"`
	ToolCall *ToolCall   `json:"toolCall,omitempty"`
}

func clarify(msg string) Outcome {
	return Outcome{Type: OutcomeClarification, Message: msg}
}

func respond(msg string) Outcome {
	return Outcome{Type: OutcomeResponse, Message: msg}
}
