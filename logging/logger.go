package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string ("debug", "info", "warn", "error",
// any case) to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used throughout leadflow.
// This allows users to provide their own logger implementation or use the
// built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewSlogLogger builds a Logger writing structured records to os.Stdout.
// Format is "json" or "text".
func NewSlogLogger(level LogLevel, format string, addSource bool) Logger {
	return NewSlogLoggerTo(os.Stdout, level, format, addSource)
}

// NewSlogLoggerTo is like NewSlogLogger with an explicit output writer.
func NewSlogLoggerTo(w io.Writer, level LogLevel, format string, addSource bool) Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level), AddSource: addSource}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FlowLogger enriches a Logger with conversational context (component,
// session, flow) and offers domain convenience methods for reconciliation
// and reply-generation outcomes. It is cheap to copy via the With* methods
// and itself implements Logger, so the context attributes ride along on
// every record.
type FlowLogger struct {
	logger    Logger
	component string
	sessionID string
	flow      string
}

// NewFlowLogger wraps an existing Logger without any context attached yet.
func NewFlowLogger(logger Logger) *FlowLogger {
	return &FlowLogger{logger: logger}
}

// WithComponent sets the logical component (classifier, extractor, reconciler, engine).
func (l *FlowLogger) WithComponent(c string) *FlowLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithSession attaches a session identifier.
func (l *FlowLogger) WithSession(sid string) *FlowLogger {
	nl := *l
	nl.sessionID = sid
	return &nl
}

// WithFlow attaches the resolved flow name.
func (l *FlowLogger) WithFlow(flow string) *FlowLogger {
	nl := *l
	nl.flow = flow
	return &nl
}

// contextArgs prepends the attached context attributes to args.
func (l *FlowLogger) contextArgs(args []any) []any {
	ctx := make([]any, 0, 6+len(args))
	if l.component != "" {
		ctx = append(ctx, "component", l.component)
	}
	if l.sessionID != "" {
		ctx = append(ctx, "session_id", l.sessionID)
	}
	if l.flow != "" {
		ctx = append(ctx, "flow", l.flow)
	}
	return append(ctx, args...)
}

// Debug logs at debug level with the attached context.
func (l *FlowLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, l.contextArgs(args)...)
}

// Info logs at info level with the attached context.
func (l *FlowLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.contextArgs(args)...)
}

// Warn logs at warn level with the attached context.
func (l *FlowLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, l.contextArgs(args)...)
}

// Error logs at error level with the attached context.
func (l *FlowLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, l.contextArgs(args)...)
}

// LogReconciliation records the outcome of one reconciliation attempt. A
// failed attempt logs as a warning because the record stays pending rather
// than lost.
func (l *FlowLogger) LogReconciliation(identityKey string, merged bool, dur time.Duration, err error) {
	if err != nil {
		l.Warn("record save deferred", "identity_key", identityKey, "duration", dur, "error", err)
		return
	}
	l.Info("record reconciled", "identity_key", identityKey, "merged", merged, "duration", dur)
}

// LogGeneration records latency and success of one generation collaborator
// call.
func (l *FlowLogger) LogGeneration(dur time.Duration, err error) {
	if err != nil {
		l.Warn("reply generation failed, using canned reply", "duration", dur, "error", err)
		return
	}
	l.Debug("reply generated", "duration", dur)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
