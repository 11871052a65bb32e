package ops

import (
	"bytes"
	"strings"
	"testing"

	"github.com/reverbhq/reverb/internal/config"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&config.Logging{Level: "warn", Format: "text"}, &buf)

	logger.Info("should be suppressed")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be suppressed") {
		t.Error("Info message appeared despite warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("Warn message missing")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&config.Logging{Level: "info", Format: "json"}, &buf)

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Errorf("Expected JSON output, got: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&config.Logging{Level: "info", Format: "json"}, &buf)

	logger.WithComponent("ingest").Info("started")

	if !strings.Contains(buf.String(), `"component":"ingest"`) {
		t.Errorf("Expected component field, got: %s", buf.String())
	}
}

func TestIsDebugEnabled(t *testing.T) {
	var buf bytes.Buffer

	debug := NewLoggerWithWriter(&config.Logging{Level: "debug"}, &buf)
	if !debug.IsDebugEnabled() {
		t.Error("Expected debug enabled")
	}

	info := NewLoggerWithWriter(&config.Logging{Level: "info"}, &buf)
	if info.IsDebugEnabled() {
		t.Error("Expected debug disabled at info level")
	}
}
