package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aashrith/task-away-assistant/internal/tasks"
)

const (
	DefaultMaxAddsPerMessage = 10
	DefaultMaxTotalTasks     = 500
)

type Limits struct {
	MaxAddsPerMessage int
	MaxTotalTasks     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxAddsPerMessage: DefaultMaxAddsPerMessage,
		MaxTotalTasks:     DefaultMaxTotalTasks,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxAddsPerMessage <= 0 {
		l.MaxAddsPerMessage = DefaultMaxAddsPerMessage
	}
	if l.MaxTotalTasks <= 0 {
		l.MaxTotalTasks = DefaultMaxTotalTasks
	}
	return l
}

var ErrGuardrail = errors.New("guardrail exceeded")

const (
	LimitTotalTasks     = "total_tasks"
	LimitAddsPerMessage = "adds_per_message"
)

// GuardrailError is a refusal. Its Message is shown to the user as is.
type GuardrailError struct {
	Limit   string
	Message string
}

func (e *GuardrailError) Error() string { return fmt.Sprintf("%s: %s", ErrGuardrail, e.Limit) }

func (e *GuardrailError) Unwrap() error { return ErrGuardrail }

func TotalTasksMessage(max int) string {
	return fmt.Sprintf("You already have %d tasks, which is the maximum. Delete or clear some tasks before adding more.", max)
}

func AddsPerMessageMessage(max int) string {
	return fmt.Sprintf("I can add at most %d tasks per message. Send the rest in another message.", max)
}

// Guard serializes the capacity check for adds across every turn in the
// process. A slot is reserved under the lock and counted until released, so
// concurrent turns cannot overshoot MaxTotalTasks between check and insert.
type Guard struct {
	mu       sync.Mutex
	store    tasks.Store
	limits   Limits
	inflight int
}

func NewGuard(store tasks.Store, limits Limits) *Guard {
	return &Guard{store: store, limits: limits.withDefaults()}
}

func (g *Guard) Limits() Limits { return g.limits }

// Reservation holds one add slot. Release must be called once the store add
// has returned, whether it succeeded or not.
type Reservation struct {
	once  sync.Once
	guard *Guard
}

func (r *Reservation) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.guard.mu.Lock()
		r.guard.inflight--
		r.guard.mu.Unlock()
	})
}

// Reserve checks the total cap first, then the per-turn cap. A refusal is a
// *GuardrailError and leaves both counters untouched.
func (g *Guard) Reserve(ctx context.Context, ec *ExecutionContext) (*Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	stored, err := tasks.Count(ctx, g.store)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	if stored+g.inflight >= g.limits.MaxTotalTasks {
		return nil, &GuardrailError{Limit: LimitTotalTasks, Message: TotalTasksMessage(g.limits.MaxTotalTasks)}
	}
	if !ec.claimAdd(g.limits.MaxAddsPerMessage) {
		return nil, &GuardrailError{Limit: LimitAddsPerMessage, Message: AddsPerMessageMessage(g.limits.MaxAddsPerMessage)}
	}
	g.inflight++
	return &Reservation{guard: g}, nil
}
