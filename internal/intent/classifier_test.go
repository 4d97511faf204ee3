package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

type fakeModel struct {
	calls int
	last  ModelRequest
	out   RawIntent
	err   error
}

func (f *fakeModel) Classify(_ context.Context, req ModelRequest) (RawIntent, error) {
	f.calls++
	f.last = req
	return f.out, f.err
}

func newTestClassifier(m Model, limit int) *Classifier {
	c := NewClassifier(m, ClassifierConfig{HistoryLimit: limit, Location: time.UTC}, zap.NewNop())
	c.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClassifyEmptyInputSkipsModel(t *testing.T) {
	m := &fakeModel{}
	c := newTestClassifier(m, 0)

	for _, msgs := range [][]Message{
		nil,
		{{Role: RoleUser, Content: "   \n"}},
		{{Role: RoleUser, Content: "add milk"}, {Role: RoleAssistant, Content: "ok"}, {Role: RoleUser, Content: ""}},
	} {
		d, err := c.Classify(context.Background(), msgs)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if d.Kind != DecisionRespond || d.Message != EmptyInputMessage {
			t.Fatalf("Classify() = %+v, want empty-input response", d)
		}
	}
	if m.calls != 0 {
		t.Fatalf("model calls = %d, want 0", m.calls)
	}
}

func TestClassifyCapsHistoryAndStampsTime(t *testing.T) {
	m := &fakeModel{out: RawIntent{Intent: "listTasks"}}
	c := newTestClassifier(m, 3)

	var msgs []Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	d, err := c.Classify(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Kind != DecisionReady || d.Command.Name != ListTasks {
		t.Fatalf("Classify() = %+v", d)
	}
	if len(m.last.Messages) != 3 || m.last.Messages[0].Content != "m7" {
		t.Fatalf("history = %+v, want last 3 messages", m.last.Messages)
	}
	if !strings.HasSuffix(m.last.System, " Current time: 2025-06-01T12:00:00Z.") {
		t.Fatalf("system prompt suffix = %q", m.last.System[len(m.last.System)-40:])
	}
	if m.last.SchemaName != OutputSchemaName || m.last.Schema == nil {
		t.Fatalf("schema not attached: %+v", m.last)
	}
}

func TestClassifyOtherIntent(t *testing.T) {
	m := &fakeModel{out: RawIntent{Intent: "other"}}
	c := newTestClassifier(m, 0)
	d, err := c.Classify(context.Background(), []Message{{Role: RoleUser, Content: "what's the weather"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Kind != DecisionRespond || d.Message != UnknownIntentMessage {
		t.Fatalf("Classify() = %+v", d)
	}
}

func TestClassifyPropagatesModelFailure(t *testing.T) {
	boom := errors.New("upstream 503")
	m := &fakeModel{err: boom}
	c := newTestClassifier(m, 0)
	_, err := c.Classify(context.Background(), []Message{{Role: RoleUser, Content: "add milk"}})
	if !errors.Is(err, boom) {
		t.Fatalf("Classify() error = %v, want wrapped %v", err, boom)
	}
	if m.calls != 1 {
		t.Fatalf("model calls = %d, want exactly 1", m.calls)
	}
}

func TestClassifyRunsPolicy(t *testing.T) {
	m := &fakeModel{out: RawIntent{Intent: "markTaskDone"}}
	c := newTestClassifier(m, 0)
	d, err := c.Classify(context.Background(), []Message{{Role: RoleUser, Content: "mark done"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if d.Kind != DecisionClarify || d.Message != "Which task? (title or id)" {
		t.Fatalf("Classify() = %+v", d)
	}
}

func TestOutputSchemaRequiresEveryField(t *testing.T) {
	schema := OutputSchema()
	required, _ := schema["required"].([]any)
	if len(required) != len(wireFields)+1 {
		t.Fatalf("required = %d entries, want %d", len(required), len(wireFields)+1)
	}
	if schema["additionalProperties"] != false {
		t.Fatalf("additionalProperties must be false")
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]Role{"assistant": RoleAssistant, " SYSTEM ": RoleSystem, "tool": RoleUser, "": RoleUser}
	for raw, want := range cases {
		if got := NormalizeRole(raw); got != want {
			t.Fatalf("NormalizeRole(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"buy milk", 20, "buy milk"},
		{"buy milk", 3, "buy..."},
		{"café au lait", 4, "caf..."},
		{"日本語", 4, "日..."},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.n)
		if got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) = %q is not valid UTF-8", tc.in, tc.n, got)
		}
	}
}
