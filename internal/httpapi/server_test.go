package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/assistant"
	"github.com/aashrith/task-away-assistant/internal/audit"
	"github.com/aashrith/task-away-assistant/internal/config"
	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/llm"
	"github.com/aashrith/task-away-assistant/internal/observability"
	"github.com/aashrith/task-away-assistant/internal/protocol"
	"github.com/aashrith/task-away-assistant/internal/session"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

type fixture struct {
	ts       *httptest.Server
	store    *tasks.MemoryStore
	sessions *session.Manager
	audit    *audit.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		MetricsNamespace:         "test",
		Location:                 time.UTC,
	}
	f := &fixture{
		store:    tasks.NewMemoryStore(nil),
		sessions: session.NewManager(cfg.SessionInactivityTimeout),
		audit:    audit.NewMemoryStore(),
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	classifier := intent.NewClassifier(llm.NewMockModel(), intent.ClassifierConfig{Location: time.UTC}, zap.NewNop())
	dispatcher := assistant.NewDispatcher(f.store, assistant.DispatcherConfig{Location: time.UTC, Observer: metrics})
	engine := assistant.NewEngine(classifier, dispatcher, assistant.EngineConfig{
		Sessions: f.sessions,
		Audit:    f.audit,
		Observer: metrics,
	})
	srv := New(cfg, Deps{
		Engine:   engine,
		Tasks:    f.store,
		Sessions: f.sessions,
		Audit:    f.audit,
		Metrics:  metrics,
	})
	f.ts = httptest.NewServer(srv.Router())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) (int, map[string]any) {
	t.Helper()
	res, err := http.Post(f.ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer res.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return res.StatusCode, payload
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	res, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer res.Body.Close()
	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return res.StatusCode, payload
}

func chatBody(sessionID string, texts ...string) string {
	msgs := make([]map[string]string, 0, len(texts))
	for _, text := range texts {
		msgs = append(msgs, map[string]string{"role": "user", "content": text})
	}
	body := map[string]any{"messages": msgs}
	if sessionID != "" {
		body["session_id"] = sessionID
	}
	b, _ := json.Marshal(body)
	return string(b)
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	status, payload := f.get(t, "/healthz")
	if status != http.StatusOK || payload["task_store_mode"] != "in-memory" {
		t.Fatalf("GET /healthz = %d %+v", status, payload)
	}
	status, payload = f.get(t, "/readyz")
	if status != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("GET /readyz = %d %+v", status, payload)
	}
}

func TestChatRequestValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name, body, code, message string
	}{
		{"empty", "", "INVALID_REQUEST", "Invalid request: request body is required"},
		{"null", "null", "INVALID_REQUEST", "Invalid request: request body is required"},
		{"no messages", `{"session_id":"x"}`, "INVALID_REQUEST", "Invalid request: messages array is required"},
		{"messages not array", `{"messages":"add milk"}`, "INVALID_REQUEST", "Invalid request: messages array is required"},
		{"malformed", `{"messages":[`, "INVALID_JSON", "Invalid JSON format in request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := f.post(t, "/v1/chat", tc.body)
			if status != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", status, http.StatusBadRequest)
			}
			want := map[string]any{"error": tc.message, "code": tc.code}
			if diff := cmp.Diff(want, payload); diff != "" {
				t.Fatalf("payload (-want +got):\n%s", diff)
			}
		})
	}
}

func TestChatAddThenList(t *testing.T) {
	f := newFixture(t)

	status, payload := f.post(t, "/v1/chat", chatBody("", "add buy milk"))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "response", payload["type"])
	require.Equal(t, `Task "buy milk" created successfully.`, payload["message"])

	status, payload = f.get(t, "/v1/tasks")
	require.Equal(t, http.StatusOK, status)
	list, ok := payload["tasks"].([]any)
	require.True(t, ok, "tasks should be an array: %+v", payload)
	require.Len(t, list, 1)
	require.Equal(t, "buy milk", list[0].(map[string]any)["title"])

	status, payload = f.post(t, "/v1/chat", chatBody("", "show my tasks"))
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, payload["message"], "**buy milk**")
}

func TestChatDryRunReturnsToolCall(t *testing.T) {
	f := newFixture(t)

	status, payload := f.post(t, "/v1/chat", `{"messages":[{"role":"user","content":"add call mom"}],"dry_run":true}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "tool_call", payload["type"])
	call, ok := payload["toolCall"].(map[string]any)
	require.True(t, ok, "missing toolCall: %+v", payload)
	require.Equal(t, "addTask", call["name"])

	n, _ := f.store.Count(t.Context())
	require.Zero(t, n)
}

func TestChatUnknownSessionIsNotFound(t *testing.T) {
	f := newFixture(t)

	status, payload := f.post(t, "/v1/chat", chatBody("missing", "list tasks"))
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "SESSION_NOT_FOUND", payload["code"])
}

func TestSessionLifecycleAndAudit(t *testing.T) {
	f := newFixture(t)

	status, created := f.post(t, "/v1/sessions", `{"user_id":"user-1"}`)
	require.Equal(t, http.StatusCreated, status)
	sessionID, _ := created["session_id"].(string)
	require.NotEmpty(t, sessionID)

	status, _ = f.post(t, "/v1/chat", chatBody(sessionID, "add water plants"))
	require.Equal(t, http.StatusOK, status)
	status, payload := f.post(t, "/v1/chat", chatBody(sessionID, "mark it done"))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, `Task "water plants" marked as completed.`, payload["message"])

	status, payload = f.get(t, "/v1/sessions/"+sessionID+"/audit?limit=10")
	require.Equal(t, http.StatusOK, status)
	records, _ := payload["records"].([]any)
	require.Len(t, records, 2)

	status, payload = f.get(t, "/v1/sessions/"+sessionID+"/audit?limit=zero")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "INVALID_REQUEST", payload["code"])

	status, _ = f.post(t, "/v1/sessions/"+sessionID+"/end", "")
	require.Equal(t, http.StatusOK, status)

	status, payload = f.post(t, "/v1/chat", chatBody(sessionID, "list tasks"))
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "SESSION_NOT_FOUND", payload["code"])
}

func TestMetricsAndPerfLatency(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/v1/chat", chatBody("", "add buy milk"))

	status, payload := f.get(t, "/v1/perf/latency")
	require.Equal(t, http.StatusOK, status)
	stages, _ := payload["stages"].([]any)
	require.NotEmpty(t, stages)

	res, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `test_turns_total{outcome="response"} 1`)
}

func TestChatWebSocketStreamsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(protocol.ChatRequest{
		Type:      protocol.TypeChatRequest,
		RequestID: "r1",
		Messages:  []protocol.ChatMessage{{Role: "user", Content: "add buy milk"}},
	}))

	var types []protocol.MessageType
	var text bytes.Buffer
	for {
		var raw map[string]any
		require.NoError(t, conn.ReadJSON(&raw))
		typ := protocol.MessageType(raw["type"].(string))
		types = append(types, typ)
		require.Equal(t, "r1", raw["request_id"])
		if typ == protocol.TypeTextDelta {
			text.WriteString(raw["text_delta"].(string))
		}
		if typ == protocol.TypeFinish {
			require.Equal(t, "stop", raw["reason"])
			break
		}
	}
	require.Equal(t, protocol.TypeToolCall, types[0])
	for _, typ := range types[1 : len(types)-1] {
		require.Equal(t, protocol.TypeTextDelta, typ)
	}
	require.Equal(t, `Task "buy milk" created successfully.`, text.String())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)))
	var errEvent protocol.ErrorEvent
	require.NoError(t, conn.ReadJSON(&errEvent))
	require.Equal(t, protocol.TypeErrorEvent, errEvent.Type)
	require.Equal(t, "invalid_client_message", errEvent.Code)

	require.NoError(t, conn.Close())
	f.ts.Close()
	http.DefaultClient.CloseIdleConnections()
}

func TestChatWebSocketRejectsUnknownSession(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/v1/chat/ws?session_id=nope"
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}
