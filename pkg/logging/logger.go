// Package logging provides structured logging capabilities for the application.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// DebugLevel logs detailed debugging information.
	DebugLevel LogLevel = "debug"
	// InfoLevel logs informational messages.
	InfoLevel LogLevel = "info"
	// WarnLevel logs warning messages.
	WarnLevel LogLevel = "warn"
	// ErrorLevel logs error messages.
	ErrorLevel LogLevel = "error"
)

// Logger is a wrapper around slog.Logger that provides structured logging.
type Logger struct {
	*slog.Logger
}

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where the logs will be written to.
	Output io.Writer
	// ServiceName is the name of the service that is logging.
	ServiceName string
	// Environment is the environment the service is running in (e.g., "production", "development").
	Environment string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:       InfoLevel,
		Output:      os.Stdout,
		ServiceName: "paystream",
		Environment: "development",
	}
}

// New creates a new structured logger with the given configuration.
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case DebugLevel:
		level = slog.LevelDebug
	case InfoLevel:
		level = slog.LevelInfo
	case WarnLevel:
		level = slog.LevelWarn
	case ErrorLevel:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(time.RFC3339))
				}
			}
			return a
		},
	})

	logger := slog.New(handler).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	return &Logger{Logger: logger}
}

// WithField adds a field to the logger.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Logger: l.With(slog.Any(key, value))}
}

// WithError adds an error to the logger.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.With(slog.String("error", err.Error()))}
}
