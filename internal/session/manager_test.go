package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.BeginTurn(s.ID); !errors.Is(err, ErrEnded) {
		t.Fatalf("BeginTurn() after End error = %v, want ErrEnded", err)
	}
}

func TestManagerCreateReusesActiveSessionPerUser(t *testing.T) {
	m := NewManager(time.Minute)
	a := m.Create("u1")
	b := m.Create("u1")
	if a.ID != b.ID {
		t.Fatalf("Create() returned %q then %q, want same session", a.ID, b.ID)
	}
	if c := m.Create(""); c.ID == a.ID {
		t.Fatalf("anonymous session should be new")
	}
}

func TestManagerCarriesLastAffectedBetweenTurns(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("")

	last, err := m.BeginTurn(s.ID)
	if err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}
	if last != "" {
		t.Fatalf("first turn last = %q, want empty", last)
	}
	if err := m.CompleteTurn(s.ID, "task_7"); err != nil {
		t.Fatalf("CompleteTurn() error = %v", err)
	}
	if err := m.CompleteTurn(s.ID, ""); err != nil {
		t.Fatalf("CompleteTurn() error = %v", err)
	}

	last, err = m.BeginTurn(s.ID)
	if err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}
	if last != "task_7" {
		t.Fatalf("last = %q, want %q", last, "task_7")
	}
	got, _ := m.Get(s.ID)
	if got.TurnCount != 2 {
		t.Fatalf("TurnCount = %d, want 2", got.TurnCount)
	}
}

func TestManagerUnknownSession(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.BeginTurn("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BeginTurn() error = %v, want ErrNotFound", err)
	}
	if err := m.CompleteTurn("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteTurn() error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1")
	expired := make(chan string, 1)
	m.SetExpireHook(func(s *Session) { expired <- s.ID })

	ctx, cancel := context.WithCancel(context.Background())
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired %q, want %q", id, s.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session was not expired")
	}
	cancel()

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}
