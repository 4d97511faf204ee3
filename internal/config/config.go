package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config contains all runtime settings for the task assistant service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	SessionJanitorInterval   time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool
	Location                 *time.Location

	LogLevel       string
	LogDevelopment bool

	LLMMode       string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMModel      string
	LLMHTTPURL    string
	LLMTimeout    time.Duration

	HistoryLimit      int
	MaxAddsPerMessage int
	MaxTotalTasks     int

	DatabaseURL     string
	TasksSQLitePath string
	AuditEnabled    bool

	ConfigFile string
}

// Load reads a .env file if present, then an optional TOML file named by
// APP_CONFIG_FILE, then the environment. Environment values win over the file.
func Load() (Config, error) {
	if err := loadDotEnv(envOrDefault("APP_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}
	src := &source{}
	if path := stringsTrimSpace("APP_CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}
	cfg, err := load(src)
	if err != nil {
		return Config{}, err
	}
	cfg.ConfigFile = stringsTrimSpace("APP_CONFIG_FILE")
	return cfg, nil
}

func load(src *source) (Config, error) {
	cfg := Config{
		BindAddr:         src.str("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: src.str("APP_METRICS_NAMESPACE", "taskaway"),
		LogLevel:         strings.ToLower(src.str("LOG_LEVEL", "info")),
		LLMMode:          strings.ToLower(src.str("LLM_MODE", "auto")),
		OpenAIAPIKey:     src.str("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    src.str("OPENAI_BASE_URL", ""),
		LLMModel:         src.str("LLM_MODEL", "gpt-4o-mini"),
		LLMHTTPURL:       src.str("LLM_HTTP_URL", ""),
		DatabaseURL:      src.str("DATABASE_URL", ""),
		TasksSQLitePath:  src.str("TASKS_SQLITE_PATH", ""),
	}

	var err error
	if cfg.ShutdownTimeout, err = src.duration("APP_SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionInactivityTimeout, err = src.duration("APP_SESSION_INACTIVITY_TIMEOUT", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SessionJanitorInterval, err = src.duration("APP_SESSION_JANITOR_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LLMTimeout, err = src.duration("LLM_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = src.boolean("APP_ALLOW_ANY_ORIGIN", false); err != nil {
		return Config{}, err
	}
	if cfg.LogDevelopment, err = src.boolean("LOG_DEVELOPMENT", false); err != nil {
		return Config{}, err
	}
	if cfg.AuditEnabled, err = src.boolean("AUDIT_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.HistoryLimit, err = src.integer("ASSISTANT_HISTORY_LIMIT", 50); err != nil {
		return Config{}, err
	}
	if cfg.MaxAddsPerMessage, err = src.integer("ASSISTANT_MAX_ADDS_PER_MESSAGE", 10); err != nil {
		return Config{}, err
	}
	if cfg.MaxTotalTasks, err = src.integer("ASSISTANT_MAX_TOTAL_TASKS", 500); err != nil {
		return Config{}, err
	}

	tz := src.str("APP_TIMEZONE", "Local")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE parse error: %w", err)
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.SessionJanitorInterval <= 0 {
		return Config{}, fmt.Errorf("APP_SESSION_JANITOR_INTERVAL must be positive")
	}
	if cfg.LLMTimeout <= 0 {
		return Config{}, fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("ASSISTANT_HISTORY_LIMIT must be positive")
	}
	if cfg.MaxAddsPerMessage <= 0 {
		return Config{}, fmt.Errorf("ASSISTANT_MAX_ADDS_PER_MESSAGE must be positive")
	}
	if cfg.MaxTotalTasks <= 0 {
		return Config{}, fmt.Errorf("ASSISTANT_MAX_TOTAL_TASKS must be positive")
	}
	switch cfg.LLMMode {
	case "auto", "openai", "http", "mock":
	default:
		return Config{}, fmt.Errorf("LLM_MODE must be one of auto, openai, http, mock")
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// readFile parses a flat TOML table keyed by environment variable names.
func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config file %s: %s must be a scalar", path, k)
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s *source) lookup(key string) string {
	if v := stringsTrimSpace(key); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[key])
}

func (s *source) str(key, fallback string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return fallback
}

func (s *source) duration(key string, fallback time.Duration) (time.Duration, error) {
	return durationFrom(key, s.lookup(key), fallback)
}

func (s *source) integer(key string, fallback int) (int, error) {
	return intFrom(key, s.lookup(key), fallback)
}

func (s *source) boolean(key string, fallback bool) (bool, error) {
	return boolFrom(key, s.lookup(key), fallback)
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFrom(key, v string, fallback time.Duration) (time.Duration, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFrom(key, v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFrom(key, v string, fallback bool) (bool, error) {
	v = strings.ToLower(v)
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
