package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/protocol"
	"github.com/aashrith/task-away-assistant/internal/reliability"
)

const (
	wsReadLimit    = 1 << 20
	wsIdleTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		respondError(w, http.StatusServiceUnavailable, codeInternal, msgInternal)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID != "" {
		if s.sessions == nil {
			respondError(w, http.StatusBadRequest, codeInvalidRequest, msgSessionsDisabled)
			return
		}
		if _, err := s.sessions.Get(sessionID); err != nil {
			respondError(w, http.StatusNotFound, codeSessionNotFound, msgSessionNotFound)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})

	ctx := r.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.metrics.ObserveWSMessage("inbound", "invalid")
			if werr := s.writeWS(conn, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Detail:    invalidMessageDetail(err),
			}); werr != nil {
				return
			}
			continue
		}

		req := parsed.(protocol.ChatRequest)
		s.metrics.ObserveWSMessage("inbound", string(req.Type))
		if req.SessionID == "" {
			req.SessionID = sessionID
		}
		if err := s.streamTurn(ctx, conn, req); err != nil {
			s.logger.Debug("websocket stream stopped", zap.String("session_id", req.SessionID), zap.Error(err))
			return
		}
	}
}

// streamTurn runs one chat_request. Engine failures become an error_event
// and keep the socket open; a write failure ends the connection.
func (s *Server) streamTurn(ctx context.Context, conn *websocket.Conn, req protocol.ChatRequest) error {
	messages := make([]intent.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, intent.Message{Role: intent.NormalizeRole(m.Role), Content: m.Content})
	}

	var writeErr error
	err := s.engine.Stream(ctx, assistant.TurnRequest{
		SessionID: req.SessionID,
		Messages:  messages,
		DryRun:    req.DryRun,
	}, func(ev assistant.Event) error {
		writeErr = s.writeWS(conn, toWireEvent(req, ev))
		return writeErr
	})
	if err == nil || writeErr != nil {
		return writeErr
	}

	status, code, message := s.classifyError(err)
	s.logger.Warn("websocket turn failed",
		zap.String("session_id", req.SessionID),
		zap.Int("status", status),
		zap.Bool("retryable", reliability.IsRetryable(err)),
		zap.Error(err),
	)
	return s.writeWS(conn, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Code:      code,
		Source:    "assistant",
		Retryable: reliability.IsRetryableHTTPStatus(status) || reliability.IsRetryable(err),
		Detail:    message,
	})
}

func toWireEvent(req protocol.ChatRequest, ev assistant.Event) any {
	switch ev.Type {
	case assistant.EventToolCall:
		return protocol.ToolCall{
			Type:      protocol.TypeToolCall,
			RequestID: req.RequestID,
			SessionID: req.SessionID,
			Name:      ev.ToolCall.Name,
			Args:      ev.ToolCall.Args,
		}
	case assistant.EventTextDelta:
		return protocol.TextDelta{
			Type:      protocol.TypeTextDelta,
			RequestID: req.RequestID,
			SessionID: req.SessionID,
			TextDelta: ev.Delta,
		}
	default:
		return protocol.Finish{
			Type:      protocol.TypeFinish,
			RequestID: req.RequestID,
			SessionID: req.SessionID,
			Reason:    ev.FinishReason,
			Outcome:   string(ev.Outcome),
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}
	if t, ok := messageTypeOf(msg); ok {
		s.metrics.ObserveWSMessage("outbound", string(t))
	}
	return nil
}

func invalidMessageDetail(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnsupportedType):
		return "unsupported message type"
	case errors.Is(err, protocol.ErrInvalidMessage):
		return "chat_request needs a non-empty messages array"
	default:
		return "message is not valid JSON"
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ChatRequest:
		return m.Type, true
	case protocol.ToolCall:
		return m.Type, true
	case protocol.TextDelta:
		return m.Type, true
	case protocol.Finish:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
