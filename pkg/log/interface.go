// Package log provides the structured logging interface used across modelbench.
//
// Packages log through the small Logger interface below; the process-wide
// implementation is a zerolog adapter configured once by Setup. Tests swap
// in a TestLogger to capture JSON lines.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("evaluate").With(
//	    log.ModelNameKey, "Decision Tree",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Model trained",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 80,
//	    log.FeaturesKey, 8,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. An error value may be passed as the
// first field of Error, in which case it is logged under the "error" key with
// its stack trace.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	//
	// Example:
	//   logger.Error("Model training failed",
	//       err,
	//       log.OperationKey, "fit",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	// Use it to skip building expensive fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
