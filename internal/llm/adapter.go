package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/aashrith/task-away-assistant/internal/intent"
)

const (
	ModeAuto   = "auto"
	ModeOpenAI = "openai"
	ModeHTTP   = "http"
	ModeMock   = "mock"
)

// Config controls model backend construction.
type Config struct {
	Mode          string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	Model         string
	HTTPURL       string
	Timeout       time.Duration
}

// NewModel returns the classifier backend selected by cfg.Mode.
func NewModel(cfg Config) (intent.Model, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModeAuto:
		return newAutoModel(cfg), nil
	case ModeOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for %s mode", ModeOpenAI)
		}
		return NewOpenAIModel(cfg), nil
	case ModeHTTP:
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, fmt.Errorf("LLM_HTTP_URL is required for %s mode", ModeHTTP)
		}
		return NewHTTPModel(cfg.HTTPURL, cfg.Timeout), nil
	case ModeMock:
		return NewMockModel(), nil
	default:
		return nil, fmt.Errorf("unsupported model mode %q", cfg.Mode)
	}
}

func newAutoModel(cfg Config) intent.Model {
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		return NewOpenAIModel(cfg)
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPModel(cfg.HTTPURL, cfg.Timeout)
	}
	return NewMockModel()
}

// Describe names the backend for health output.
func Describe(m intent.Model) string {
	switch m.(type) {
	case *OpenAIModel:
		return ModeOpenAI
	case *HTTPModel:
		return ModeHTTP
	case *MockModel:
		return ModeMock
	case nil:
		return "disabled"
	default:
		return "custom"
	}
}
