package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"msg=\"session changed\"", "to=AUTHENTICATED"}},
		{"json", []string{`"msg":"session changed"`, `"to":"AUTHENTICATED"`}},
		{"JSON", []string{`"msg":"session changed"`}},
		{"", []string{"to=AUTHENTICATED"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			NewLoggerWithWriter(slog.LevelInfo, tt.format, &buf).Info("session changed", "to", "AUTHENTICATED")
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q missing %q", buf.String(), w)
				}
			}
		})
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("sending request")
	logger.Warn("unauthorized response")

	output := buf.String()
	if strings.Contains(output, "sending request") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "unauthorized response") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNewLoggerWithWriter_ChildLogger(t *testing.T) {
	var buf bytes.Buffer
	child := NewLoggerWithWriter(slog.LevelDebug, "text", &buf).With("component", "bookview")
	child.Debug("discarding superseded activation", "book_id", 7)

	output := buf.String()
	if !strings.Contains(output, "component=bookview") || !strings.Contains(output, "book_id=7") {
		t.Errorf("child attributes missing, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelWarn},
		{"", slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestOr(t *testing.T) {
	if Or(nil) == nil {
		t.Fatal("Or(nil) returned nil")
	}
	Or(nil).Error("dropped")

	l := Discard()
	if Or(l) != l {
		t.Error("Or replaced a non-nil logger")
	}
}
