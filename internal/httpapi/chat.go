package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/reliability"
)

const (
	maxChatBodyBytes = 1 << 20

	codeInvalidRequest  = "INVALID_REQUEST"
	codeInvalidJSON     = "INVALID_JSON"
	codeSessionNotFound = "SESSION_NOT_FOUND"
	codeInternal        = "INTERNAL_ERROR"

	msgBodyRequired     = "Invalid request: request body is required"
	msgMessagesRequired = "Invalid request: messages array is required"
	msgInvalidJSON      = "Invalid JSON format in request body"
	msgSessionNotFound  = "Session not found or already ended"
	msgSessionsDisabled = "Invalid request: sessions are not enabled"
	msgInternal         = "Internal server error"
)

// requestError is a client mistake with a fixed public message.
type requestError struct {
	status  int
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

type chatResponse struct {
	assistant.Outcome
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		respondError(w, http.StatusServiceUnavailable, codeInternal, msgInternal)
		return
	}
	req, rerr := decodeChatRequest(r)
	if rerr != nil {
		respondError(w, rerr.status, rerr.code, rerr.message)
		return
	}

	out, err := s.engine.Handle(r.Context(), req)
	if err != nil {
		status, code, message := s.classifyError(err)
		s.logger.Warn("chat turn failed",
			zap.String("session_id", req.SessionID),
			zap.Int("status", status),
			zap.Bool("retryable", reliability.IsRetryable(err)),
			zap.Error(err),
		)
		respondError(w, status, code, message)
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Outcome: out, SessionID: req.SessionID})
}

// classifyError maps an engine error to a public status, code and message.
// The error text itself is never returned.
func (s *Server) classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, assistant.ErrNotFound):
		return http.StatusNotFound, codeSessionNotFound, msgSessionNotFound
	case errors.Is(err, assistant.ErrInvalid):
		return http.StatusBadRequest, codeInvalidRequest, msgSessionsDisabled
	default:
		return http.StatusInternalServerError, codeInternal, msgInternal
	}
}

func decodeChatRequest(r *http.Request) (assistant.TurnRequest, *requestError) {
	if r.Body == nil {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidRequest, msgBodyRequired}
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxChatBodyBytes))
	if err != nil {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidRequest, msgBodyRequired}
	}
	return parseChatBody(raw)
}

func parseChatBody(raw []byte) (assistant.TurnRequest, *requestError) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidRequest, msgBodyRequired}
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidJSON, msgInvalidJSON}
	}
	if body == nil {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidRequest, msgBodyRequired}
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidRequest, msgMessagesRequired}
	}
	list, ok := obj["messages"].([]any)
	if !ok {
		return assistant.TurnRequest{}, &requestError{http.StatusBadRequest, codeInvalidRequest, msgMessagesRequired}
	}

	req := assistant.TurnRequest{Messages: toMessages(list)}
	if id, ok := obj["session_id"].(string); ok {
		req.SessionID = strings.TrimSpace(id)
	}
	if dry, ok := obj["dry_run"].(bool); ok {
		req.DryRun = dry
	}
	return req, nil
}

// toMessages keeps object entries and normalizes their roles. Non-string
// content is treated as empty.
func toMessages(list []any) []intent.Message {
	out := make([]intent.Message, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		out = append(out, intent.Message{Role: intent.NormalizeRole(role), Content: content})
	}
	return out
}
