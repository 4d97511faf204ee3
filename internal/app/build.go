package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/audit"
	"github.com/aashrith/task-away-assistant/internal/config"
	"github.com/aashrith/task-away-assistant/internal/httpapi"
	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/llm"
	"github.com/aashrith/task-away-assistant/internal/observability"
	"github.com/aashrith/task-away-assistant/internal/session"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

// ModelInfo describes the classifier backend that was selected.
type ModelInfo struct {
	Mode   string
	Detail string
}

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Engine    *assistant.Engine
	Tasks     tasks.Store
	StoreMode string
	Sessions  *session.Manager
	Audit     audit.Store
	Metrics   *observability.Metrics
	Model     ModelInfo

	// Cleanup should be called on shutdown to release the task and audit stores.
	Cleanup func() error
}

// Build wires the stores, the classifier backend and the engine behind the
// HTTP API.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	model, err := llm.NewModel(llm.Config{
		Mode:          cfg.LLMMode,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		Model:         cfg.LLMModel,
		HTTPURL:       cfg.LLMHTTPURL,
		Timeout:       cfg.LLMTimeout,
	})
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("model init failed: %w", err)
	}
	modelInfo := ModelInfo{Mode: cfg.LLMMode, Detail: llm.Describe(model)}
	logger.Info("classifier backend selected", zap.String("mode", modelInfo.Mode), zap.String("detail", modelInfo.Detail))

	store := observability.InstrumentStore(stores.Tasks, metrics)

	classifier := intent.NewClassifier(model, intent.ClassifierConfig{
		HistoryLimit: cfg.HistoryLimit,
		Location:     cfg.Location,
	}, logger)

	dispatcher := assistant.NewDispatcher(store, assistant.DispatcherConfig{
		Limits: assistant.Limits{
			MaxAddsPerMessage: cfg.MaxAddsPerMessage,
			MaxTotalTasks:     cfg.MaxTotalTasks,
		},
		Location: cfg.Location,
		Observer: metrics,
		Logger:   logger,
	})

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(s *session.Session) {
		logger.Debug("session expired", zap.String("session_id", s.ID))
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	engineCfg := assistant.EngineConfig{
		Sessions: sessions,
		Observer: metrics,
		Logger:   logger,
	}
	if stores.Audit != nil {
		engineCfg.Audit = stores.Audit
	}
	engine := assistant.NewEngine(classifier, dispatcher, engineCfg)

	api := httpapi.New(cfg, httpapi.Deps{
		Engine:    engine,
		Tasks:     store,
		StoreMode: stores.Mode,
		Sessions:  sessions,
		Audit:     stores.Audit,
		Metrics:   metrics,
		Logger:    logger,
	})

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Engine:    engine,
		Tasks:     store,
		StoreMode: stores.Mode,
		Sessions:  sessions,
		Audit:     stores.Audit,
		Metrics:   metrics,
		Model:     modelInfo,
		Cleanup:   stores.Close,
	}, nil
}

// Stores holds the persistence backends selected by configuration.
type Stores struct {
	Tasks tasks.Store
	Mode  string
	Audit audit.Store
}

// OpenStores opens the task store and, when enabled, the audit store. Schema
// creation happens as part of opening.
func OpenStores(ctx context.Context, cfg config.Config) (*Stores, error) {
	taskStore, err := tasks.NewStore(ctx, tasks.StoreOptions{
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.TasksSQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("task store init failed: %w", err)
	}
	out := &Stores{Tasks: taskStore, Mode: tasks.Mode(taskStore)}

	if cfg.AuditEnabled {
		auditStore, err := audit.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = taskStore.Close()
			return nil, fmt.Errorf("audit store init failed: %w", err)
		}
		out.Audit = auditStore
	}
	return out, nil
}

func (s *Stores) Close() error {
	var errs []error
	if s.Audit != nil {
		if err := s.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit store: %w", err))
		}
	}
	if s.Tasks != nil {
		if err := s.Tasks.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task store: %w", err))
		}
	}
	return errors.Join(errs...)
}
