// Package logging sets up structured logging for the livefind binaries.
// Library packages log through slog.Default; binaries call Initialize
// once at startup.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `yaml:"level"`
	// Format selects the handler: "text" or "json".
	Format string `yaml:"format"`
	// ErrorFile, when set, receives an additional JSON stream of
	// warn-and-above records.
	ErrorFile string `yaml:"error_file"`
}

// DefaultConfig returns the configuration used when none is provided.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

// Initialize builds a logger from cfg and installs it as the process
// default.
func Initialize(cfg Config) error {
	logger, err := NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	slog.Debug("Logging initialized", "level", cfg.Level, "format", cfg.Format)
	return nil
}

// NewLogger creates a logger writing to w, plus the error file stream
// when configured.
func NewLogger(cfg Config, w io.Writer) (*slog.Logger, error) {
	handler := createHandler(w, cfg.Format, ParseLevel(cfg.Level))

	if cfg.ErrorFile != "" {
		f, err := os.OpenFile(cfg.ErrorFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		errHandler := NewLevelFilter(createHandler(f, "json", slog.LevelWarn), slog.LevelWarn)
		handler = NewMultiHandler(handler, errHandler)
	}

	return slog.New(handler), nil
}

func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps a level name to its slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
