package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/tickup/internal/logger"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = stderrors.New("validation failed")
	// ErrPermissionDenied is returned by schedulers when notifications are not authorized
	ErrPermissionDenied = stderrors.New("notifications not authorized")
)

// ValidationError reports user input that was rejected before any state changed.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError builds a ValidationError
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// SchedulerError is a failed scheduler call for a single alert line.
type SchedulerError struct {
	Op     string // schedule, cancel, cancel_all
	Line   string // task, daily, weekly
	TaskID string
	Err    error
}

func (e *SchedulerError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("%s %s alert for task %s: %v", e.Op, e.Line, e.TaskID, e.Err)
	}
	if e.Line != "" {
		return fmt.Sprintf("%s %s alert: %v", e.Op, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// PersistenceError is a failed read or write against the preference store.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to %s preference store: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied reports whether err was caused by missing notification permission
func IsPermissionDenied(err error) bool {
	return stderrors.Is(err, ErrPermissionDenied)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
