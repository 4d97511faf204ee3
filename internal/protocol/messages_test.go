package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageChatRequest(t *testing.T) {
	raw := []byte(`{"type":"chat_request","request_id":"r1","session_id":" s1 ","messages":[{"role":"user","content":"add milk"}],"dry_run":true}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	req, ok := msg.(ChatRequest)
	if !ok {
		t.Fatalf("message type = %T, want ChatRequest", msg)
	}
	if req.SessionID != "s1" || req.RequestID != "r1" || !req.DryRun {
		t.Fatalf("unexpected chat request: %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "add milk" {
		t.Fatalf("Messages = %+v", req.Messages)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_audio_chunk"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmptyMessages(t *testing.T) {
	for _, raw := range []string{
		`{"type":"chat_request"}`,
		`{"type":"chat_request","messages":[]}`,
		`{"type":"chat_request","messages":"add milk"}`,
	} {
		if _, err := ParseClientMessage([]byte(raw)); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("ParseClientMessage(%s) error = %v, want ErrInvalidMessage", raw, err)
		}
	}
}

func TestParseClientMessageRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func TestServerMessagesCarryType(t *testing.T) {
	raw, err := json.Marshal(Finish{Type: TypeFinish, Reason: "stop", Outcome: "response"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if env.Type != TypeFinish {
		t.Fatalf("Type = %q, want %q", env.Type, TypeFinish)
	}
}

func BenchmarkParseClientMessageChatRequest(b *testing.B) {
	raw := []byte(`{"type":"chat_request","session_id":"s1","messages":[{"role":"user","content":"add buy milk with high priority"}]}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(ChatRequest); !ok {
			b.Fatalf("message type = %T, want ChatRequest", msg)
		}
	}
}
