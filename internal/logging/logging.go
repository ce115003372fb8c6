// Package logging builds the slog loggers shared by the CLI, the client
// packages and the development backend.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// FormatJSON selects the JSON handler; anything else is text.
const FormatJSON = "json"

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// NewLogger logs to stderr, leaving stdout to command output.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter logs records at or above level to w in the given
// format.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name, case-insensitively, to its slog.Level.
// Unknown names give warn so a misconfigured CLI stays quiet.
func ParseLevel(name string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return slog.LevelWarn
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Or lets constructors accept a nil logger.
func Or(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}
