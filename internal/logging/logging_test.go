package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zapcore.Level{
		"":       zapcore.InfoLevel,
		"debug":  zapcore.DebugLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("chatty"); err == nil {
		t.Fatalf("ParseLevel(chatty) error = nil")
	}
}

func TestNewWritesJSONAtLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{Level: "warn", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", zap.String("intent", "addTask"))
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(b)
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"intent":"addTask"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}
