package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/app"
	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/command"
	"github.com/aashrith/task-away-assistant/internal/config"
	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/logging"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := command.BuildApp(command.Deps{
		RunServe:   runServe,
		RunChat:    runChat,
		RunTasks:   runTasks,
		RunMigrate: runMigrate,
	})
	if err := cli.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "taskaway: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
	})
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	built, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn("cleanup failed", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	built.Sessions.StartJanitor(runCtx, cfg.SessionJanitorInterval)

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.BindAddr),
			zap.String("task_store", built.StoreMode),
			zap.String("model", built.Model.Detail),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}
	logger.Info("shutdown complete")
	return nil
}

func runChat(ctx context.Context, cfg config.Config, opts command.ChatOptions) error {
	// Keep the terminal clean; only warnings reach stderr.
	cfg.LogLevel = "warn"
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	built, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = built.Cleanup() }()

	sess := built.Sessions.Create(opts.UserID)
	fmt.Printf("taskaway chat (%s model, %s store). Ctrl-D to quit.\n", built.Model.Detail, built.StoreMode)
	return chatLoop(ctx, built.Engine, logger, sess.ID, opts.DryRun, os.Stdin, os.Stdout)
}

const chatFailureMessage = "Something went wrong. Please try again."

func chatLoop(ctx context.Context, engine *assistant.Engine, logger *zap.Logger, sessionID string, dryRun bool, in io.Reader, out io.Writer) error {
	var history []intent.Message
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		history = append(history, intent.Message{Role: intent.RoleUser, Content: line})

		res, err := engine.Handle(ctx, assistant.TurnRequest{
			SessionID: sessionID,
			Messages:  history,
			DryRun:    dryRun,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("chat turn failed", zap.String("session_id", sessionID), zap.Error(err))
			fmt.Fprintln(out, chatFailureMessage)
			continue
		}

		reply := res.Message
		if res.ToolCall != nil {
			args, _ := json.Marshal(res.ToolCall.Args)
			reply = fmt.Sprintf("%s %s", res.ToolCall.Name, args)
		}
		fmt.Fprintln(out, reply)
		history = append(history, intent.Message{Role: intent.RoleAssistant, Content: reply})
	}
}

func runTasks(ctx context.Context, cfg config.Config, status string) error {
	if status != "" && !tasks.Status(status).Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	all, err := stores.Tasks.List(ctx)
	if err != nil {
		return err
	}
	return printTasks(os.Stdout, all, tasks.Status(status))
}

func printTasks(w io.Writer, all []tasks.Task, status tasks.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Priority, due)
	}
	return tw.Flush()
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("schemas ready (task store: %s, audit: %t)\n", stores.Mode, stores.Audit != nil)
	return stores.Close()
}
