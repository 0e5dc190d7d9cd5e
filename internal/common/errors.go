// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Classification errors.
	ErrClassificationFailed = errors.New("classification failed")
	ErrMappingFailed        = errors.New("mapping conversion failed")

	// Configuration errors.
	ErrMissingConfig        = errors.New("missing configuration")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrUnknownSourceSystem  = errors.New("unknown source system")
	ErrUnsupportedScheme    = errors.New("unsupported URI scheme")
	ErrOutputNotWritable    = errors.New("output directory not writable")
	ErrPathOutsideOutput    = errors.New("path escapes the output tree")
	ErrMalformedAnalysis    = errors.New("malformed analysis")
	ErrMissingTableName     = errors.New("analysis has no table name")
	ErrEmptyModelResponse   = errors.New("empty model response")
	ErrUnrecognizedDecision = errors.New("unrecognized classification")
	ErrNotASelect           = errors.New("model SQL is not a SELECT statement")
)

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

// ConfigError reports a problem with a named configuration field. It wraps
// ErrInvalidConfig or ErrMissingConfig so callers can match with errors.Is.
type ConfigError struct {
	Err    error
	Source string
	Field  string
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("%s: %v: %s", e.Source, e.Err, e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
