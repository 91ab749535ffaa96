// Package obslog provides the leveled stderr logging used throughout the
// registry: application load warnings, listener accept failures, and
// per-app import errors. Logging backends and structured tracing are
// treated as an external collaborator; this package is deliberately a thin
// wrapper over the standard library, not a framework.
package obslog

import (
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Info logs a routine, expected event (e.g. "application loaded").
func Info(format string, args ...any) {
	std.Printf("INFO  "+format, args...)
}

// Warn logs a recoverable problem (e.g. an orphaned blob).
func Warn(format string, args ...any) {
	std.Printf("WARN  "+format, args...)
}

// Error logs a failure that aborted the current operation.
func Error(format string, args ...any) {
	std.Printf("ERROR "+format, args...)
}
