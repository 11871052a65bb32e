package ops

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/reverbhq/reverb/internal/config"
)

// Logger is a structured logger wrapper
type Logger struct {
	*slog.Logger
	level  slog.Level
	format string
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// NewLogger creates a new structured logger based on config
func NewLogger(cfg *config.Logging) *Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger with a custom writer
func NewLoggerWithWriter(cfg *config.Logging, w io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		format: cfg.Format,
	}
}

// WithComponent adds a component field to all log messages
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
		format: l.format,
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= slog.LevelDebug
}

// LogRelayConnection logs a relay connection transition
func (l *Logger) LogRelayConnection(relay string, connected bool, err error) {
	if err != nil {
		l.Warn("relay connection failed",
			"relay", relay,
			"error", err)
	} else if connected {
		l.Info("relay connected",
			"relay", relay)
	} else {
		l.Info("relay disconnected",
			"relay", relay)
	}
}

// LogIngestProgress logs ingestion loop progress
func (l *Logger) LogIngestProgress(processed, dropped uint64, watermark int64) {
	l.Debug("ingest progress",
		"processed", processed,
		"dropped", dropped,
		"watermark", watermark)
}

// LogHandlerError logs a kind handler failure for a single event
func (l *Logger) LogHandlerError(kind int, eventID string, err error) {
	l.Error("handler failed",
		"kind", kind,
		"event_id", eventID,
		"error", err)
}

// LogTrendingCycle logs the outcome of one trending window computation
func (l *Logger) LogTrendingCycle(period string, candidates, kept int, duration time.Duration, err error) {
	if err != nil {
		l.Error("trending cycle failed",
			"period", period,
			"duration_ms", duration.Milliseconds(),
			"error", err)
	} else {
		l.Info("trending cycle completed",
			"period", period,
			"candidates", candidates,
			"kept", kept,
			"duration_ms", duration.Milliseconds())
	}
}

// LogStoreError logs an external store failure
func (l *Logger) LogStoreError(op string, err error) {
	l.Error("store operation failed",
		"operation", op,
		"error", err)
}

// Default logger configuration
var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger(&config.Logging{
		Level:  "info",
		Format: "text",
	})
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}
