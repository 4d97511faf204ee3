package assistant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/intent"
	"github.com/aashrith/task-away-assistant/internal/tasks"
)

// Handler executes one validated command within a turn.
type Handler func(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error)

// Observer receives turn and guardrail signals. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveTurn(intentName string, outcome OutcomeType)
	ObserveGuardrail(limit string)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveTurn(string, OutcomeType) {}
func (nopObserver) ObserveGuardrail(string) {}

type DispatcherConfig struct {
	Limits   Limits
	Location *time.Location
	Observer Observer
	Logger   *zap.Logger
}

// Dispatcher maps every command name to its handler.
type Dispatcher struct {
	store    tasks.Store
	guard    *Guard
	resolver *Resolver
	composer *Composer
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[intent.Name]Handler
}

func NewDispatcher(store tasks.Store, cfg DispatcherConfig) *Dispatcher {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	composer := NewComposer(cfg.Location)
	d := &Dispatcher{
		store:    store,
		guard:    NewGuard(store, cfg.Limits),
		resolver: NewResolver(store, composer),
		composer: composer,
		observer: cfg.Observer,
		logger:   cfg.Logger.Named("dispatcher"),
		now:      time.Now,
		handlers: make(map[intent.Name]Handler),
	}
	d.registerDefaults()
	return d
}

func (d *Dispatcher) registerDefaults() {
	d.handlers[intent.AddTask] = d.addTask
	d.handlers[intent.ListTasks] = d.listTasks
	d.handlers[intent.MarkTaskDone] = d.markTaskDone
	d.handlers[intent.DeleteTask] = d.deleteTask
	d.handlers[intent.ListOverdueTasks] = d.listOverdueTasks
	d.handlers[intent.RenameTask] = d.renameTask
	d.handlers[intent.ListTopPriorities] = d.listTopPriorities
	d.handlers[intent.DeleteAllTasks] = d.deleteAllTasks
	d.handlers[intent.CompleteAllTasks] = d.completeAllTasks
	d.handlers[intent.ClearCompletedTasks] = d.clearCompletedTasks
	d.handlers[intent.UpdateTask] = d.updateTask
	d.handlers[intent.UpdateAllTasksPriority] = d.updateAllTasksPriority
}

// Register replaces the handler for name.
func (d *Dispatcher) Register(name intent.Name, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h == nil {
		delete(d.handlers, name)
		return
	}
	d.handlers[name] = h
}

func (d *Dispatcher) Composer() *Composer { return d.composer }

func (d *Dispatcher) Guard() *Guard { return d.guard }

// Dispatch runs the handler for cmd.Name. Names without a handler get a
// plain reply rather than an error.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd intent.Command, ec *ExecutionContext) (Outcome, error) {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Name]
	d.mu.RUnlock()
	if !ok {
		return respond(NotImplementedMessage(string(cmd.Name))), nil
	}
	if ec == nil {
		ec = NewExecutionContext("")
	}
	d.logger.Debug("dispatch", zap.String("intent", string(cmd.Name)))
	out, err := h(ctx, cmd, ec)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return out, nil
}
