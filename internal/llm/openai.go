package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aashrith/task-away-assistant/internal/intent"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIModel classifies through Chat Completions with a strict json_schema
// response format.
type OpenAIModel struct {
	client openai.Client
	model  string
}

func NewOpenAIModel(cfg Config) *OpenAIModel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if key := strings.TrimSpace(cfg.OpenAIAPIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIModel{client: openai.NewClient(opts...), model: model}
}

func (m *OpenAIModel) Classify(ctx context.Context, req intent.ModelRequest) (intent.RawIntent, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.model),
		Messages:    toChatMessages(req),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.SchemaName,
					Description: openai.String("Task manager intent and parameters"),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	chat, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return intent.RawIntent{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return intent.RawIntent{}, errors.New("openai chat completion returned no choices")
	}
	msg := chat.Choices[0].Message
	if refusal := strings.TrimSpace(msg.Refusal); refusal != "" {
		return intent.RawIntent{}, fmt.Errorf("openai refused classification: %s", refusal)
	}
	return decodeRawIntent([]byte(msg.Content))
}

func toChatMessages(req intent.ModelRequest) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case intent.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		case intent.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func decodeRawIntent(body []byte) (intent.RawIntent, error) {
	var raw intent.RawIntent
	if err := json.Unmarshal(body, &raw); err != nil {
		return intent.RawIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	if strings.TrimSpace(raw.Intent) == "" {
		return intent.RawIntent{}, errors.New("decode intent: missing intent")
	}
	return raw, nil
}
