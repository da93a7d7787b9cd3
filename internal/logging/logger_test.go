package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"default level", "", zerolog.InfoLevel},
		{"debug level", "debug", zerolog.DebugLevel},
		{"info level", "info", zerolog.InfoLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"warning alias", "warning", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"case insensitive", "DEBUG", zerolog.DebugLevel},
		{"unknown falls back to info", "verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup, err := Init("", tt.level)
			if err != nil {
				t.Fatalf("Init() failed: %v", err)
			}
			defer cleanup()

			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("expected level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestInitCreatesNestedLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "logs", "carpool.log")

	cleanup, err := Init(logPath, "info")
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer cleanup()

	Get().Info().Msg("test message")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "test message") {
		t.Errorf("log file does not contain message: %q", data)
	}
}

func TestComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	cleanup, err := Init("", "debug", &buf)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer cleanup()

	logger := Component("realtime")
	logger.Info().Msg("connected")

	out := buf.String()
	if !strings.Contains(out, `"component":"realtime"`) {
		t.Errorf("expected component field, got %q", out)
	}
	if !strings.Contains(out, `"message":"connected"`) {
		t.Errorf("expected message field, got %q", out)
	}
}
