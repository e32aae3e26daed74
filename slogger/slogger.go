package slogger

import (
	"context"
	"strings"
)

// DefaultLogger is the logger used when none is configured explicitly.
var DefaultLogger = NewDevNullLogger()

// Logger is the structured logging interface used throughout cascade. It
// supports key-value pairs and is designed to be compatible with common
// logging libraries like slog and zerolog.
type Logger interface {
	// Debug logs a message at debug level with optional key-value pairs
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at info level with optional key-value pairs
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at warn level with optional key-value pairs
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at error level with optional key-value pairs
	Error(msg string, keysAndValues ...any)

	// With returns a new Logger with the given key-value pairs added to the context
	With(keysAndValues ...any) Logger
}

type contextKey string

const (
	loggerKey contextKey = "cascade.logger"
)

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns the logger carried by the given context, or a new logger at
// the default level if none is present.
func Ctx(ctx context.Context) Logger {
	if ctx == nil {
		return New(DefaultLogLevel)
	}
	logger, ok := ctx.Value(loggerKey).(Logger)
	if !ok {
		return New(DefaultLogLevel)
	}
	return logger
}

// LevelFromString converts a string to a LogLevel.
func LevelFromString(level string) LogLevel {
	value := strings.ToLower(level)
	switch value {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return DefaultLogLevel
	}
}

// DevNullLogger implements the Logger interface but does nothing.
type DevNullLogger struct{}

// NewDevNullLogger returns a new DevNullLogger instance
func NewDevNullLogger() *DevNullLogger {
	return &DevNullLogger{}
}

func (l *DevNullLogger) Debug(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) Info(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Warn(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Error(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) With(keysAndValues ...any) Logger       { return l }
