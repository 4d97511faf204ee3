package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/audit"
	"github.com/aashrith/task-away-assistant/internal/session"
)

const maxAuditLimit = 200

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusNotImplemented, "SESSIONS_DISABLED", "Sessions are disabled.")
		return
	}
	var req session.CreateRequest
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, codeInvalidJSON, msgInvalidJSON)
			return
		}
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	sess := s.sessions.Create(strings.TrimSpace(req.UserID))
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusCreated, session.NewCreateResponse(sess, s.sessions.InactivityTimeout()))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusNotImplemented, "SESSIONS_DISABLED", "Sessions are disabled.")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, codeSessionNotFound, msgSessionNotFound)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		respondError(w, http.StatusNotImplemented, "AUDIT_DISABLED", "Audit log is disabled.")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	limit := audit.DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request: limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	records, err := s.audit.Recent(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("audit lookup failed", zap.String("session_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}
	if records == nil {
		records = []audit.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"records":    records,
	})
}
