package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/reliability"
)

func userRequest(text string) intent.ModelRequest {
	return intent.ModelRequest{
		System:     intent.SystemPrompt,
		Messages:   []intent.Message{{Role: intent.RoleUser, Content: text}},
		SchemaName: intent.OutputSchemaName,
		Schema:     intent.OutputSchema(),
	}
}

func TestNewModelAutoSelection(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, ModeMock},
		{Config{HTTPURL: "http://example.test"}, ModeHTTP},
		{Config{OpenAIAPIKey: "sk-test", HTTPURL: "http://example.test"}, ModeOpenAI},
	}
	for _, tc := range cases {
		m, err := NewModel(tc.cfg)
		if err != nil {
			t.Fatalf("NewModel(%+v) error = %v", tc.cfg, err)
		}
		if got := Describe(m); got != tc.want {
			t.Fatalf("Describe() = %q, want %q", got, tc.want)
		}
	}
}

func TestNewModelExplicitModesRequireSettings(t *testing.T) {
	if _, err := NewModel(Config{Mode: "openai"}); err == nil {
		t.Fatalf("expected error for openai mode without key")
	}
	if _, err := NewModel(Config{Mode: "http"}); err == nil {
		t.Fatalf("expected error for http mode without url")
	}
	if _, err := NewModel(Config{Mode: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unsupported mode")
	}
}

func TestHTTPModelPlainJSON(t *testing.T) {
	var got httpRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"intent":"addTask","title":"Buy milk","priority":"high"}`))
	}))
	defer srv.Close()

	m := NewHTTPModel(srv.URL, time.Second)
	raw, err := m.Classify(context.Background(), userRequest("add buy milk"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if raw.Intent != "addTask" || raw.Title != "Buy milk" || raw.Priority != "high" {
		t.Fatalf("raw = %+v", raw)
	}
	if got.SchemaName != intent.OutputSchemaName || len(got.Messages) != 1 {
		t.Fatalf("request = %+v", got)
	}
}

func TestHTTPModelEnvelope(t *testing.T) {
	raw, err := parseBody([]byte(`{"output":"{\"intent\":\"listTasks\"}"}`))
	if err != nil {
		t.Fatalf("parseBody() error = %v", err)
	}
	if raw.Intent != "listTasks" {
		t.Fatalf("Intent = %q", raw.Intent)
	}
}

func TestHTTPModelSSEFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, strings.Join([]string{
			": keepalive",
			`data: {"delta":"{\"intent\":\"deleteTask\","}`,
			"",
			`data: {"delta":"\"taskIdentifier\":\"milk\"}"}`,
			"",
			"data: [DONE]",
			"",
		}, "\n"))
	}))
	defer srv.Close()

	raw, err := NewHTTPModel(srv.URL, time.Second).Classify(context.Background(), userRequest("delete milk"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if raw.Intent != "deleteTask" || raw.TaskIdentifier != "milk" {
		t.Fatalf("raw = %+v", raw)
	}
}

func TestHTTPModelNDJSONWholeObject(t *testing.T) {
	raw, err := consumeStreaming(strings.NewReader("{\"delta\":\"ignored\"}\n{\"intent\":\"listOverdueTasks\"}\n"))
	if err != nil {
		t.Fatalf("consumeStreaming() error = %v", err)
	}
	if raw.Intent != "listOverdueTasks" {
		t.Fatalf("Intent = %q", raw.Intent)
	}
}

func TestHTTPModelStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPModel(srv.URL, time.Second).Classify(context.Background(), userRequest("list"))
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("Classify() error = %v, want status 503", err)
	}
	if !reliability.IsRetryable(err) {
		t.Fatalf("IsRetryable(%v) = false, want true", err)
	}
}

func TestOpenAIModelStructuredOutput(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"intent\":\"markTaskDone\",\"taskIdentifier\":\"that\"}"}
			}]
		}`)
	}))
	defer srv.Close()

	m := NewOpenAIModel(Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL, Timeout: time.Second})
	raw, err := m.Classify(context.Background(), userRequest("mark that done"))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if raw.Intent != "markTaskDone" || raw.TaskIdentifier != "that" {
		t.Fatalf("raw = %+v", raw)
	}

	format, _ := captured["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("response_format = %v", captured["response_format"])
	}
	if captured["model"] != DefaultOpenAIModel {
		t.Fatalf("model = %v, want %q", captured["model"], DefaultOpenAIModel)
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want system + user", len(msgs))
	}
}

func TestMockModelKeywords(t *testing.T) {
	cases := []struct {
		text string
		want intent.RawIntent
	}{
		{"add buy milk, call mom and pay rent", intent.RawIntent{Intent: "addTask", Title: "buy milk", AdditionalTitles: "call mom\npay rent"}},
		{"add file taxes with high priority", intent.RawIntent{Intent: "addTask", Title: "file taxes", Priority: "high"}},
		{"show my tasks", intent.RawIntent{Intent: "listTasks"}},
		{"mark buy milk as done", intent.RawIntent{Intent: "markTaskDone", TaskIdentifier: "buy milk"}},
		{"delete it", intent.RawIntent{Intent: "deleteTask", TaskIdentifier: "it"}},
		{"rename milk to oat milk", intent.RawIntent{Intent: "renameTask", TaskIdentifier: "milk", NewTitle: "oat milk"}},
		{"what's overdue?", intent.RawIntent{Intent: "listOverdueTasks"}},
		{"top 5 this week", intent.RawIntent{Intent: "listTopPriorities", Timeframe: "this week", Limit: "5"}},
		{"delete all tasks", intent.RawIntent{Intent: "deleteAllTasks"}},
		{"clear completed", intent.RawIntent{Intent: "clearCompletedTasks"}},
		{"complete all", intent.RawIntent{Intent: "completeAllTasks"}},
		{"set all tasks to low priority", intent.RawIntent{Intent: "updateAllTasksPriority", Priority: "low"}},
		{"set milk priority to high", intent.RawIntent{Intent: "updateTask", TaskIdentifier: "milk", Priority: "high"}},
		{"tell me a joke", intent.RawIntent{Intent: "other"}},
	}
	m := NewMockModel()
	for _, tc := range cases {
		got, err := m.Classify(context.Background(), userRequest(tc.text))
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("Classify(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
	}
}
