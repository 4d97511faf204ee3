package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const DefaultHistoryLimit = 50

const logTruncation = 120

type ClassifierConfig struct {
	HistoryLimit int
	Location     *time.Location
}

// Classifier maps a conversation to a Decision with one model call.
type Classifier struct {
	model        Model
	policy       *Policy
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

func NewClassifier(model Model, cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		model:        model,
		policy:       NewPolicy(cfg.Location),
		historyLimit: cfg.HistoryLimit,
		logger:       logger.Named("classifier"),
		now:          time.Now,
	}
}

// Classify never retries. A model failure is returned wrapped and the caller
// treats it as fatal for the turn.
func (c *Classifier) Classify(ctx context.Context, messages []Message) (Decision, error) {
	history := recent(messages, c.historyLimit)

	lastUser := lastUserContent(history)
	c.logger.Debug("classify input", zap.String("last_user", truncate(lastUser, logTruncation)))
	if strings.TrimSpace(lastUser) == "" {
		return Decision{Kind: DecisionRespond, Message: EmptyInputMessage}, nil
	}
	if c.model == nil {
		return Decision{}, errors.New("classify intent: no model configured")
	}

	raw, err := c.model.Classify(ctx, ModelRequest{
		System:     fmt.Sprintf("%s Current time: %s.", SystemPrompt, c.now().UTC().Format(time.RFC3339)),
		Messages:   history,
		SchemaName: OutputSchemaName,
		Schema:     OutputSchema(),
	})
	if err != nil {
		return Decision{}, fmt.Errorf("classify intent: %w", err)
	}

	name := Name(strings.TrimSpace(raw.Intent))
	slots := raw.Slots()
	c.logger.Debug("classified", zap.String("intent", string(name)), zap.Int("slots", len(slots)))

	if name == Other {
		return Decision{Kind: DecisionRespond, Intent: Other, Message: UnknownIntentMessage}, nil
	}
	return c.policy.Decide(name, slots), nil
}

func recent(messages []Message, limit int) []Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
