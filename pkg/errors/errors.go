package errors

import (
	"errors"
	"fmt"
)

// Common client errors with proper types for error handling

var (
	// ErrNoSession indicates no session record is stored
	ErrNoSession = errors.New("no session")

	// ErrCorruptSession indicates the persisted session record failed shape validation
	ErrCorruptSession = errors.New("corrupt session record")

	// ErrUnauthorized indicates missing or invalid authentication
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRefreshFailed indicates the token refresh protocol did not yield a new access token
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal client error
	ErrInternal = errors.New("internal error")
)

// CorruptSessionError creates a corrupt session error with context
func CorruptSessionError(reason string) error {
	if reason != "" {
		return fmt.Errorf("%s: %w", reason, ErrCorruptSession)
	}
	return ErrCorruptSession
}

// RefreshFailedError creates a refresh failure error with context
func RefreshFailedError(reason string) error {
	if reason != "" {
		return fmt.Errorf("%s: %w", reason, ErrRefreshFailed)
	}
	return ErrRefreshFailed
}

// InvalidInputError creates an invalid input error with context
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// InternalError creates an internal error with context
func InternalError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrInternal)
}

// Is checks if an error matches a target error (works with wrapped errors)
func Is(err, target error) bool {
	return errors.Is(err, target)
}
