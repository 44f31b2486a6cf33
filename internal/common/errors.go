// Package common holds errors, retry and logging helpers shared by the
// ingest packages and the CLI.
package common

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrIncomplete marks a run that finished but skipped files or dropped
	// rows, when the caller asked for that to be an error.
	ErrIncomplete = errors.New("ingest incomplete")
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitIncomplete = 2
)

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrIncomplete):
		return ExitIncomplete
	default:
		return ExitFailure
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrBusy) || errors.Is(err, context.DeadlineExceeded)
}
