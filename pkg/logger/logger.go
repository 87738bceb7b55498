// Package logger provides a leveled logger shared by the CLI, API and engine.
package logger

import (
	"os"

	"github.com/charmbracelet/log"
)

var logger *log.Logger

// Init initializes the logger. With verbose set the level drops to debug.
func Init(verbose bool) {
	logger = log.New(os.Stderr)
	logger.SetReportTimestamp(true)
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// get returns the logger, initializing it lazily so library callers that
// never ran Init still get output.
func get() *log.Logger {
	if logger == nil {
		Init(false)
	}
	return logger
}

// Debug logs a debug message.
func Debug(msg string, args ...interface{}) {
	get().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...interface{}) {
	get().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...interface{}) {
	get().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...interface{}) {
	get().Error(msg, args...)
}

// Fatal logs a fatal message and exits.
func Fatal(msg string, args ...interface{}) {
	get().Fatal(msg, args...)
}

// GetLogger returns the underlying logger instance.
func GetLogger() *log.Logger {
	return get()
}
