// Package errors provides structured error handling for arraystore
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents conflict errors, e.g. creating an array that exists
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents object store connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"

	// ErrorTypeUnrepresentableType is returned when a source value has no
	// lossless mapping into the store's primitive types.
	ErrorTypeUnrepresentableType ErrorType = "unrepresentable_type"
	// ErrorTypeUnrecognizedOrder is returned for an unknown result order token.
	ErrorTypeUnrecognizedOrder ErrorType = "unrecognized_order"
	// ErrorTypeCapacityExceeded is returned when a single row is larger than
	// the per-commit byte cap.
	ErrorTypeCapacityExceeded ErrorType = "capacity_exceeded"
	// ErrorTypeSchemaMismatch is returned when written columns disagree with
	// the array schema.
	ErrorTypeSchemaMismatch ErrorType = "schema_mismatch"
)

// Sentinels for use with errors.Is. Any *Error whose Type equals the
// sentinel's Type matches.
var (
	ErrUnrepresentableType = &Error{Type: ErrorTypeUnrepresentableType, Message: "unrepresentable type"}
	ErrUnrecognizedOrder   = &Error{Type: ErrorTypeUnrecognizedOrder, Message: "unrecognized result order"}
	ErrCapacityExceeded    = &Error{Type: ErrorTypeCapacityExceeded, Message: "capacity exceeded"}
	ErrSchemaMismatch      = &Error{Type: ErrorTypeSchemaMismatch, Message: "schema mismatch"}
	ErrNotFound            = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrConflict            = &Error{Type: ErrorTypeConflict, Message: "conflict"}
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns the detail stored under key, or nil.
func (e *Error) Detail(key string) interface{} {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Unrepresentable returns an ErrorTypeUnrepresentableType error.
func Unrepresentable(format string, args ...interface{}) *Error {
	e := Newf(ErrorTypeUnrepresentableType, format, args...)
	e.Stack = captureStack(2)
	return e
}

// UnrecognizedOrder returns an ErrorTypeUnrecognizedOrder error for token.
func UnrecognizedOrder(token string) *Error {
	e := Newf(ErrorTypeUnrecognizedOrder, "unrecognized result order %q", token)
	e.Stack = captureStack(2)
	return e.WithDetail("token", token)
}

// CapacityExceeded returns an ErrorTypeCapacityExceeded error describing the
// offending row.
func CapacityExceeded(row int64, nbytes, capBytes int64) *Error {
	e := Newf(ErrorTypeCapacityExceeded,
		"row %d is %d bytes, over the %d byte cap for a single write", row, nbytes, capBytes)
	e.Stack = captureStack(2)
	return e.WithDetail("row", row).WithDetail("nbytes", nbytes).WithDetail("cap_nbytes", capBytes)
}

// SchemaMismatch returns an ErrorTypeSchemaMismatch error.
func SchemaMismatch(format string, args ...interface{}) *Error {
	e := Newf(ErrorTypeSchemaMismatch, format, args...)
	e.Stack = captureStack(2)
	return e
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// As is a shortcut for errors.As with an *Error target.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
