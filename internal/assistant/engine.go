package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aashrith/task-away-assistant/internal/audit"
	"github.com/aashrith/task-away-assistant/internal/intent"
)

const (
	StageClassify  = "classify"
	StageDispatch  = "dispatch"
	StageTurnTotal = "turn_total"
)

// OutcomeError is reported to the Observer for failed turns. It never
// appears in an Outcome.
const OutcomeError OutcomeType = "error"

type Classifier interface {
	Classify(ctx context.Context, messages []intent.Message) (intent.Decision, error)
}

// Sessions carries the last affected task id from one turn to the next.
type Sessions interface {
	BeginTurn(sessionID string) (string, error)
	CompleteTurn(sessionID, lastAffectedTaskID string) error
}

type Auditor interface {
	Save(ctx context.Context, record audit.Record) error
}

type EngineConfig struct {
	Sessions Sessions
	Audit    Auditor
	Observer Observer
	Logger   *zap.Logger
}

type TurnRequest struct {
	SessionID string
	Messages  []intent.Message
	DryRun    bool
}

type EventType string

const (
	EventToolCall  EventType = "tool_call"
	EventTextDelta EventType = "text_delta"
	EventFinish    EventType = "finish"
)

const (
	FinishStop          = "stop"
	FinishClarification = "clarification"
	FinishToolCall      = "tool_call"
)

// Event is one element of a streamed turn: an optional tool_call, then text
// deltas, then exactly one finish.
type Event struct {
	Type         EventType
	ToolCall     *ToolCall
	Delta        string
	FinishReason string
	Outcome      OutcomeType
}

// Engine runs one conversational turn end to end.
type Engine struct {
	classifier Classifier
	dispatcher *Dispatcher
	sessions   Sessions
	audit      Auditor
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time
}

func NewEngine(classifier Classifier, dispatcher *Dispatcher, cfg EngineConfig) *Engine {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		classifier: classifier,
		dispatcher: dispatcher,
		sessions:   cfg.Sessions,
		audit:      cfg.Audit,
		observer:   cfg.Observer,
		logger:     cfg.Logger.Named("engine"),
		now:        time.Now,
	}
}

// Handle runs a turn and returns its terminal outcome. With DryRun a ready
// command comes back as a tool_call and nothing is executed.
func (e *Engine) Handle(ctx context.Context, req TurnRequest) (Outcome, error) {
	return e.run(ctx, req, nil)
}

// Stream runs a turn and reports it through emit. A failing emit or a done
// ctx stops the stream; store mutations already issued stay applied.
func (e *Engine) Stream(ctx context.Context, req TurnRequest, emit func(Event) error) error {
	out, err := e.run(ctx, req, func(call ToolCall) error {
		return emit(Event{Type: EventToolCall, ToolCall: &call})
	})
	if err != nil {
		return err
	}

	reason := FinishStop
	switch out.Type {
	case OutcomeToolCall:
		return emit(Event{Type: EventFinish, FinishReason: FinishToolCall, Outcome: out.Type})
	case OutcomeClarification:
		reason = FinishClarification
	}

	for _, chunk := range chunkText(out.Message) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(Event{Type: EventTextDelta, Delta: chunk}); err != nil {
			return err
		}
	}
	return emit(Event{Type: EventFinish, FinishReason: reason, Outcome: out.Type})
}

type turn struct {
	req      TurnRequest
	ec       *ExecutionContext
	intent   string
	outcome  Outcome
	err      error
	started  time.Time
	sessions bool
}

func (e *Engine) run(ctx context.Context, req TurnRequest, onToolCall func(ToolCall) error) (Outcome, error) {
	t := &turn{req: req, started: e.now()}

	lastAffected, err := e.beginSession(req.SessionID)
	if err != nil {
		return Outcome{}, err
	}
	t.sessions = req.SessionID != ""
	t.ec = NewExecutionContext(lastAffected)
	defer e.finish(ctx, t)

	classifyStart := e.now()
	decision, err := e.classifier.Classify(ctx, req.Messages)
	e.observer.ObserveStage(StageClassify, e.now().Sub(classifyStart))
	if err != nil {
		t.err = fmt.Errorf("%w: %w", ErrInternal, err)
		return Outcome{}, t.err
	}
	t.intent = string(decision.Intent)

	switch decision.Kind {
	case intent.DecisionRespond:
		t.outcome = respond(decision.Message)
	case intent.DecisionClarify:
		t.outcome = clarify(decision.Message)
	case intent.DecisionReady:
		call := ToolCall{Name: string(decision.Command.Name), Args: decision.Command.Args()}
		if onToolCall != nil {
			if err := onToolCall(call); err != nil {
				t.err = err
				return Outcome{}, err
			}
		}
		if req.DryRun {
			t.outcome = Outcome{Type: OutcomeToolCall, ToolCall: &call}
			break
		}

		dispatchStart := e.now()
		out, err := e.dispatcher.Dispatch(ctx, decision.Command, t.ec)
		e.observer.ObserveStage(StageDispatch, e.now().Sub(dispatchStart))
		if err != nil {
			if !errors.Is(err, ErrInternal) {
				err = fmt.Errorf("%w: %w", ErrInternal, err)
			}
			t.err = err
			return Outcome{}, err
		}
		t.outcome = out
	default:
		t.err = fmt.Errorf("%w: unknown decision %q", ErrInternal, decision.Kind)
		return Outcome{}, t.err
	}
	return t.outcome, nil
}

func (e *Engine) beginSession(sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	if e.sessions == nil {
		return "", fmt.Errorf("%w: sessions are not enabled", ErrInvalid)
	}
	last, err := e.sessions.BeginTurn(sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: session %s: %w", ErrNotFound, sessionID, err)
	}
	return last, nil
}

// finish writes the turn back to the session, the audit log and metrics.
// Failed turns go through it as well.
func (e *Engine) finish(ctx context.Context, t *turn) {
	elapsed := e.now().Sub(t.started)
	e.observer.ObserveStage(StageTurnTotal, elapsed)

	outcomeType := t.outcome.Type
	if t.err != nil {
		outcomeType = OutcomeError
	}
	e.observer.ObserveTurn(t.intent, outcomeType)

	if t.sessions {
		if err := e.sessions.CompleteTurn(t.req.SessionID, t.ec.LastAffectedTaskID()); err != nil {
			e.logger.Warn("session write-back failed", zap.String("session_id", t.req.SessionID), zap.Error(err))
		}
	}

	if e.audit != nil {
		record := audit.Record{
			SessionID: t.req.SessionID,
			Intent:    t.intent,
			Outcome:   string(outcomeType),
			UserText:  lastUserText(t.req.Messages),
			Reply:     t.outcome.Message,
			Failed:    t.err != nil,
			DryRun:    t.req.DryRun,
			LatencyMS: elapsed.Milliseconds(),
		}
		if err := e.audit.Save(context.WithoutCancel(ctx), record); err != nil {
			e.logger.Warn("audit save failed", zap.Error(err))
		}
	}

	if t.err != nil {
		e.logger.Error("turn failed",
			zap.String("session_id", t.req.SessionID),
			zap.String("intent", t.intent),
			zap.Error(t.err),
		)
		return
	}
	e.logger.Debug("turn complete",
		zap.String("session_id", t.req.SessionID),
		zap.String("intent", t.intent),
		zap.String("outcome", string(outcomeType)),
		zap.Duration("elapsed", elapsed),
	)
}

func lastUserText(messages []intent.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == intent.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// chunkText splits s into word-sized deltas that concatenate back to s.
func chunkText(s string) []string {
	var out []string
	for _, part := range strings.SplitAfter(s, " ") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
