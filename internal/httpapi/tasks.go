package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		respondError(w, http.StatusServiceUnavailable, codeInternal, msgInternal)
		return
	}
	all, err := s.tasks.List(r.Context())
	if err != nil {
		s.logger.Error("list tasks failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, codeInternal, msgInternal)
		return
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := tasks.Status(strings.ToLower(raw))
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request: unknown status")
			return
		}
		filtered := all[:0]
		for _, t := range all {
			if t.Status == status {
				filtered = append(filtered, t)
			}
		}
		all = filtered
	}
	if all == nil {
		all = []tasks.Task{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"tasks": all,
		"count": len(all),
	})
}
