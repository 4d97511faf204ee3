package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/audit"
	"github.com/aashrith/task-away-assistant/internal/config"
	"github.com/aashrith/task-away-assistant/internal/observability"
	"github.com/aashrith/task-away-assistant/internal/session"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

// Deps are the collaborators the HTTP surface drives. Audit may be nil.
type Deps struct {
	Engine    *assistant.Engine
	Tasks     tasks.Store
	StoreMode string
	Sessions  *session.Manager
	Audit     audit.Store
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

type Server struct {
	cfg       config.Config
	engine    *assistant.Engine
	tasks     tasks.Store
	storeMode string
	sessions  *session.Manager
	audit     audit.Store
	metrics   *observability.Metrics
	logger    *zap.Logger
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(cfg.MetricsNamespace)
	}
	mode := deps.StoreMode
	if mode == "" {
		mode = tasks.Mode(deps.Tasks)
	}
	return &Server{
		cfg:       cfg,
		engine:    deps.Engine,
		tasks:     deps.Tasks,
		storeMode: mode,
		sessions:  deps.Sessions,
		audit:     deps.Audit,
		metrics:   metrics,
		logger:    logger.Named("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients usually omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Get("/v1/sessions/{id}/audit", s.handleSessionAudit)

	r.Get("/v1/tasks", s.handleListTasks)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"task_store_mode": s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status, code := "ready", http.StatusOK
	if s.engine == nil || s.tasks == nil {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":          status,
		"task_store_mode": s.storeMode,
		"sessions_active": s.activeSessions(),
		"audit_enabled":   s.audit != nil,
	})
}

func (s *Server) activeSessions() int {
	if s.sessions == nil {
		return 0
	}
	return s.sessions.ActiveCount()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
