package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/nextup/internal/logger"
)

var (
	// ErrTaskNotFound is returned by storage lookups for unknown or deleted tasks.
	ErrTaskNotFound = stderrors.New("task not found")
	// ErrPeriodNotFound is returned for unknown period definition ids.
	ErrPeriodNotFound = stderrors.New("period definition not found")
	// ErrStateConflict is returned when the persisted shuffle state changed
	// between read and write.
	ErrStateConflict = stderrors.New("shuffle state was modified concurrently")
	// ErrNotInitialized is returned when the database has not been set up.
	ErrNotInitialized = stderrors.New("nextup is not initialized, run 'nextup init'")
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
