package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Sizing errors
	ErrorTypeInvalidTargetSize   ErrorType = "invalid_target_size"
	ErrorTypeOversizeForPlatform ErrorType = "oversize_for_platform"

	// Buffer errors
	ErrorTypeEmptySourceBuffer ErrorType = "empty_source_buffer"

	// Coordination errors
	ErrorTypeWorkerFailure ErrorType = "worker_failure"

	// Collaborator errors
	ErrorTypeDecodeFailure ErrorType = "decode_failure"
	ErrorTypeEncodeFailure ErrorType = "encode_failure"

	// Configuration errors
	ErrorTypeInvalidConfig ErrorType = "invalid_config"

	// Output sink errors
	ErrorTypeStorageFailure ErrorType = "storage_failure"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Sentinels for errors.Is. Matching is by Type, so any AppError of the same
// type matches regardless of message or details.
var (
	ErrInvalidTargetSize   = New(ErrorTypeInvalidTargetSize, "invalid target size")
	ErrOversizeForPlatform = New(ErrorTypeOversizeForPlatform, "image size is too large for the platform")
	ErrEmptySourceBuffer   = New(ErrorTypeEmptySourceBuffer, "source buffer has no pixel data")
	ErrWorkerFailure       = New(ErrorTypeWorkerFailure, "resample worker failed")
	ErrDecodeFailure       = New(ErrorTypeDecodeFailure, "decode failed")
	ErrEncodeFailure       = New(ErrorTypeEncodeFailure, "encode failed")
	ErrInvalidConfig       = New(ErrorTypeInvalidConfig, "invalid resize configuration")
	ErrStorageFailure      = New(ErrorTypeStorageFailure, "storage failed")
)

// AppError represents a structured resize failure
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return msg + ": " + e.InnerError.Error()
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage replaces the message
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// Is checks if this error is of a specific type
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...))
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Format formats an error as a single line for logs and CLI output
func Format(err error) string {
	if err == nil {
		return ""
	}

	appErr := FromError(err)

	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", appErr.Type, appErr.Message))

	if len(appErr.Details) > 0 {
		keys := make([]string, 0, len(appErr.Details))
		for k := range appErr.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, appErr.Details[k]))
		}
	}

	if appErr.InnerError != nil {
		parts = append(parts, "caused_by: "+appErr.InnerError.Error())
	}

	return strings.Join(parts, " | ")
}
