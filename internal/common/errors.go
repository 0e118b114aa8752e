// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"time"
)

// Common application errors.
var (
	// Session errors.
	ErrStaleSession = errors.New("session is no longer active")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
	Retry      bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the operation may be attempted again.
func (e *RetryableError) Retryable() bool {
	return e.Retry
}

// RetryDelay returns a server-provided delay, or zero.
func (e *RetryableError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// RetryDelayHint returns the delay requested by err, if any.
func RetryDelayHint(err error) (time.Duration, bool) {
	var r interface{ RetryDelay() time.Duration }
	if errors.As(err, &r) && r.RetryDelay() > 0 {
		return r.RetryDelay(), true
	}
	return 0, false
}
