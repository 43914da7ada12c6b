package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerPullsComponentForward(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl)).With(String(FieldComponent, "ingest"))

	logger.Info("processing file", String(FieldFile, "page_001.jpg"))

	line := buf.String()
	if !strings.Contains(line, "ingest") {
		t.Fatalf("expected component in line: %q", line)
	}
	if !strings.Contains(line, "file=page_001.jpg") {
		t.Fatalf("expected attr in line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not render as a trailing attr: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("hidden")
	logger.Warn("visible")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be suppressed: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("warn line should be emitted: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
