package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newTestConsoleLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(&buf, lvl)), &buf
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	logger, buf := newTestConsoleLogger()
	NewComponentLogger(logger, "capture").Info("session started", Args(Int("fps", 12))...)

	line := buf.String()
	if !strings.Contains(line, " INFO capture: session started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "fps=12") {
		t.Fatalf("attr missing: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component not promoted: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	logger, buf := newTestConsoleLogger()
	logger.Info("delivered", Args(String("file", "my capture.webm"))...)
	if !strings.Contains(buf.String(), `file="my capture.webm"`) {
		t.Fatalf("value not quoted: %q", buf.String())
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
		t.Fatalf("info leaked through warn level: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("warn suppressed: %q", buf.String())
	}
}

func TestJSONHandlerKeyRenames(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newJSONHandler(&buf, lvl))
	logger.Error("engine load failed", Args(Error(errTest))...)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json output: %v (%q)", err, buf.String())
	}
	if payload["msg"] != "engine load failed" {
		t.Fatalf("msg key missing: %v", payload)
	}
	if payload["level"] != "error" {
		t.Fatalf("level not lowercased: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("ts key missing: %v", payload)
	}
}

var errTest = errFixed("fetch: connection refused")

type errFixed string

func (e errFixed) Error() string { return string(e) }

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "logfmt"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
