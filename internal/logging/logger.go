package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Log is the package-global logger configured by Init.
var Log = zerolog.Nop()

// ParseLevel maps "debug", "info", "warn" and "error" (case-insensitive)
// to a zerolog level. Anything else is treated as info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init initializes the global logger. The terminal belongs to the UI, so
// output goes to logFilePath when set and is discarded otherwise; extra
// writers (e.g., os.Stderr for headless runs) are appended as given.
func Init(logFilePath, level string, extra ...io.Writer) (func(), error) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	writers := append([]io.Writer{}, extra...)
	var f *os.File
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o700); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		var err error
		f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", logFilePath, err)
		}
		writers = append(writers, f)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	Log = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()

	return func() {
		if f != nil {
			_ = f.Close()
		}
	}, nil
}

// Get returns a pointer to the package-global logger.
func Get() *zerolog.Logger {
	return &Log
}

// Component returns a child of the global logger tagged with the
// component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
