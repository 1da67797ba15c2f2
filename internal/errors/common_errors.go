package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFileNotFound   ErrorType = "FILE_NOT_FOUND"
	ErrTypeMalformedTable ErrorType = "MALFORMED_TABLE"
	ErrTypeInvalidRange   ErrorType = "INVALID_RANGE"
	ErrTypeNonNumericData ErrorType = "NON_NUMERIC_DATA"
	ErrTypeWorkerFailure  ErrorType = "WORKER_FAILURE"
	ErrTypeEmptySelection ErrorType = "EMPTY_SELECTION"
	ErrTypeInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrTypeCancelled      ErrorType = "CANCELLED"
	ErrTypeConfig         ErrorType = "CONFIG"
)

// Process status codes. Zero is success; every error kind has its own code so
// that callers (and the CLI exit code) can tell them apart.
const (
	StatusOK             = 0
	StatusFileNotFound   = 1
	StatusMalformedTable = 2
	StatusInvalidRange   = 3
	StatusNonNumericData = 4
	StatusWorkerFailure  = 5
	StatusEmptySelection = 6
	StatusInvalidRequest = 7
	StatusCancelled      = 8
	StatusUnknown        = 9
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same type.
// This lets callers match on kind with errors.Is(err, &AppError{Type: ...}).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewFileNotFoundError creates an error for a missing or unreadable input file
func NewFileNotFoundError(path string, cause error) *AppError {
	return NewAppError(ErrTypeFileNotFound, fmt.Sprintf("cannot open %q", path), cause).
		WithContext("path", path)
}

// NewMalformedTableError creates a table parsing error
func NewMalformedTableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeMalformedTable, message, cause)
}

// NewInvalidRangeError creates a range resolution error
func NewInvalidRangeError(message string) *AppError {
	return NewAppError(ErrTypeInvalidRange, message, nil)
}

// NewNonNumericError reports a cell that a numeric statistic could not parse
func NewNonNumericError(row, col int, value string) *AppError {
	return NewAppError(ErrTypeNonNumericData,
		fmt.Sprintf("cell (%d,%d) is not numeric: %q", row, col, value), nil).
		WithContext("row", row).
		WithContext("column", col).
		WithContext("value", value)
}

// NewWorkerFailureError wraps a failure that aborted a chunk's accumulation
func NewWorkerFailureError(chunk int, cause error) *AppError {
	return NewAppError(ErrTypeWorkerFailure, fmt.Sprintf("chunk %d failed", chunk), cause).
		WithContext("chunk", chunk)
}

// NewEmptySelectionError creates an error for a selection with no cells
func NewEmptySelectionError(message string) *AppError {
	return NewAppError(ErrTypeEmptySelection, message, nil)
}

// NewInvalidRequestError creates a request validation error
func NewInvalidRequestError(message string, cause error) *AppError {
	return NewAppError(ErrTypeInvalidRequest, message, cause)
}

// NewCancelledError wraps a context cancellation
func NewCancelledError(cause error) *AppError {
	return NewAppError(ErrTypeCancelled, "operation cancelled", cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the outermost AppError in err's chain.
// Context cancellation that was never wrapped is reported as ErrTypeCancelled.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeCancelled
	}
	return ""
}

// IsType reports whether err carries the given ErrorType
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

// StatusCode maps an error to its process status code
func StatusCode(err error) int {
	if err == nil {
		return StatusOK
	}
	switch TypeOf(err) {
	case ErrTypeFileNotFound:
		return StatusFileNotFound
	case ErrTypeMalformedTable:
		return StatusMalformedTable
	case ErrTypeInvalidRange:
		return StatusInvalidRange
	case ErrTypeNonNumericData:
		return StatusNonNumericData
	case ErrTypeWorkerFailure:
		return StatusWorkerFailure
	case ErrTypeEmptySelection:
		return StatusEmptySelection
	case ErrTypeInvalidRequest, ErrTypeConfig:
		return StatusInvalidRequest
	case ErrTypeCancelled:
		return StatusCancelled
	default:
		return StatusUnknown
	}
}
