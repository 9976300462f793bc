// Package errors provides error handling for Open Karaoke Studio.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the domain error kinds used across the codebase.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the kind.
var (
	// ErrValidation indicates malformed or invalid input
	ErrValidation = New("validation failed")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrConflict indicates a resource conflict (e.g., duplicate id)
	ErrConflict = New("resource conflict")

	// ErrInvalidState indicates an operation illegal for the entity's current state
	ErrInvalidState = New("invalid state")

	// ErrAccessDenied indicates the request resolves outside its allowed scope
	ErrAccessDenied = New("access denied")

	// ErrNetworkFailure indicates an upstream network error
	ErrNetworkFailure = New("network failure")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = New("operation timed out")

	// ErrProviderFailure indicates an external metadata/lyrics provider error
	ErrProviderFailure = New("provider failure")

	// ErrStorageFailure indicates a database or filesystem write failure
	ErrStorageFailure = New("storage failure")

	// ErrSeparation indicates the stem separator failed
	ErrSeparation = New("separation failed")

	// ErrDownloader indicates the media downloader failed
	ErrDownloader = New("download failed")

	// ErrCancelled indicates the operation was cancelled by the user
	ErrCancelled = New("cancelled")

	// ErrInternal indicates an unexpected internal failure
	ErrInternal = New("internal error")
)

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsConflict checks if an error is or wraps ErrConflict
func IsConflict(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// IsValidation checks if an error is or wraps ErrValidation
func IsValidation(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsInvalidState checks if an error is or wraps ErrInvalidState
func IsInvalidState(err error) bool {
	return err != nil && Is(err, ErrInvalidState)
}

// IsAccessDenied checks if an error is or wraps ErrAccessDenied
func IsAccessDenied(err error) bool {
	return err != nil && Is(err, ErrAccessDenied)
}

// IsCancelled checks if an error is or wraps ErrCancelled
func IsCancelled(err error) bool {
	return err != nil && Is(err, ErrCancelled)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}
