package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aashrith/task-away-assistant/internal/app"
	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/config"
	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/reliability"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

func TestChatLoopCarriesPronounAcrossLines(t *testing.T) {
	built, err := app.Build(t.Context(), config.Config{
		SessionInactivityTimeout: time.Minute,
		Location:                 time.UTC,
		LLMMode:                  "mock",
	}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer built.Cleanup()

	sess := built.Sessions.Create("cli")
	in := strings.NewReader("add water plants\n\nmark it done\n")
	var out bytes.Buffer
	if err := chatLoop(t.Context(), built.Engine, zap.NewNop(), sess.ID, false, in, &out); err != nil {
		t.Fatalf("chatLoop() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		`Task "water plants" created successfully.`,
		`Task "water plants" marked as completed.`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output = %q, want it to contain %q", got, want)
		}
	}
}

func TestChatLoopDryRunPrintsToolCall(t *testing.T) {
	built, err := app.Build(t.Context(), config.Config{
		SessionInactivityTimeout: time.Minute,
		Location:                 time.UTC,
		LLMMode:                  "mock",
	}, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer built.Cleanup()

	var out bytes.Buffer
	if err := chatLoop(t.Context(), built.Engine, zap.NewNop(), "", true, strings.NewReader("add call mom\n"), &out); err != nil {
		t.Fatalf("chatLoop() error = %v", err)
	}
	if !strings.Contains(out.String(), "addTask {") || !strings.Contains(out.String(), `"title":"call mom"`) {
		t.Fatalf("output = %q, want an addTask tool call", out.String())
	}
	n, _ := tasks.Count(t.Context(), built.Tasks)
	if n != 0 {
		t.Fatalf("dry run created %d tasks", n)
	}
}

func TestPrintTasksFiltersByStatus(t *testing.T) {
	due := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	all := []tasks.Task{
		{ID: "task_1", Title: "buy milk", Status: tasks.StatusPending, Priority: tasks.PriorityHigh, DueDate: &due},
		{ID: "task_2", Title: "call mom", Status: tasks.StatusCompleted, Priority: tasks.PriorityLow},
	}
	var out bytes.Buffer
	if err := printTasks(&out, all, tasks.StatusPending); err != nil {
		t.Fatalf("printTasks() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want header plus one task", lines)
	}
	if !strings.Contains(lines[1], "buy milk") || !strings.Contains(lines[1], "2025-06-04") {
		t.Fatalf("row = %q", lines[1])
	}
}

type rejectingModel struct{}

func (rejectingModel) Classify(context.Context, intent.ModelRequest) (intent.RawIntent, error) {
	return intent.RawIntent{}, &reliability.StatusError{Status: 401, Body: `{"error":"invalid api key sk-live-SECRET"}`}
}

func TestChatLoopHidesEngineErrors(t *testing.T) {
	classifier := intent.NewClassifier(rejectingModel{}, intent.ClassifierConfig{Location: time.UTC}, zap.NewNop())
	dispatcher := assistant.NewDispatcher(tasks.NewMemoryStore(nil), assistant.DispatcherConfig{Location: time.UTC})
	engine := assistant.NewEngine(classifier, dispatcher, assistant.EngineConfig{})

	core, logs := observer.New(zap.WarnLevel)
	var out bytes.Buffer
	if err := chatLoop(t.Context(), engine, zap.New(core), "", false, strings.NewReader("list tasks\n"), &out); err != nil {
		t.Fatalf("chatLoop() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, chatFailureMessage) {
		t.Fatalf("output = %q, want %q", got, chatFailureMessage)
	}
	for _, leaked := range []string{"sk-live-SECRET", "401", "upstream"} {
		if strings.Contains(got, leaked) {
			t.Fatalf("output = %q leaks %q", got, leaked)
		}
	}

	entries := logs.FilterMessage("chat turn failed").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d chat failures, want 1", len(entries))
	}
	if errText, _ := entries[0].ContextMap()["error"].(string); !strings.Contains(errText, "401") {
		t.Fatalf("logged error = %q, want the upstream status", errText)
	}
}
