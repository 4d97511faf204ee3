package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeChatRequest MessageType = "chat_request"
	TypeToolCall    MessageType = "tool_call"
	TypeTextDelta   MessageType = "text_delta"
	TypeFinish      MessageType = "finish"
	TypeErrorEvent  MessageType = "error_event"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrInvalidMessage  = errors.New("invalid message")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the only client-to-server message. SessionID falls back to
// the one given when the socket was opened.
type ChatRequest struct {
	Type      MessageType   `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	DryRun    bool          `json:"dry_run,omitempty"`
}

type ToolCall struct {
	Type      MessageType    `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
}

type TextDelta struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	TextDelta string      `json:"text_delta"`
}

type Finish struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Reason    string      `json:"reason"`
	Outcome   string      `json:"outcome"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChatRequest:
		var msg ChatRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		if len(msg.Messages) == 0 {
			return nil, fmt.Errorf("%w: chat_request needs messages", ErrInvalidMessage)
		}
		msg.SessionID = strings.TrimSpace(msg.SessionID)
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
