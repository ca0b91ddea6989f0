// Package logger holds the process-wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global logger instance, nil until Initialize succeeds
	Logger *zap.Logger
)

// Initialize sets up the logger with the specified log level.
// An empty level means info; debug switches to the development encoder.
func Initialize(level string) error {
	l, err := build(level)
	if err != nil {
		return err
	}

	Logger = l
	zap.ReplaceGlobals(Logger)
	return nil
}

func build(level string) (*zap.Logger, error) {
	zapLevel := zapcore.InfoLevel
	if level != "" {
		if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	config := zap.NewProductionConfig()
	if zapLevel == zapcore.DebugLevel {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build()
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

func current() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

// WithContext returns a logger with context fields
func WithContext(fields ...zap.Field) *zap.Logger {
	return current().With(fields...)
}

// WithRun returns a logger tagged with the poll run id.
func WithRun(runID string) *zap.Logger {
	return WithContext(zap.String("run_id", runID))
}

// Named returns a logger for one component, e.g. "scheduler".
func Named(component string) *zap.Logger {
	return current().Named(component)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Debug(msg, fields...)
	}
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Info(msg, fields...)
	}
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Warn(msg, fields...)
	}
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	if Logger != nil {
		Logger.Error(msg, fields...)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	return Logger
}
