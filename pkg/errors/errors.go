// Package errors provides structured error types for Rikugan.
// Errors carry a stable code, a category, context, and a cause chain.
package errors

import (
	"fmt"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryConfig     Category = "config"     // Configuration loading/parsing errors
	CategoryModel      Category = "model"      // Model resolution and loading errors
	CategorySession    Category = "session"    // Active-session state errors
	CategoryStream     Category = "stream"     // WebSocket streaming errors
	CategoryValidation Category = "validation" // Input validation errors
	CategoryNetwork    Category = "network"    // Network/connectivity errors
	CategoryIO         Category = "io"         // File/IO errors
	CategoryInternal   Category = "internal"   // Internal/unexpected errors
)

// RikuganError is a structured error with context and a stable code.
// It implements the error interface and supports error wrapping.
type RikuganError struct {
	// Code is a unique identifier for this error type (e.g., "MODEL_NOT_FOUND")
	Code string

	// Category classifies this error for consistent handling
	Category Category

	// Message is the primary error message describing what went wrong
	Message string

	// Context provides additional key-value details about the error
	Context map[string]string

	// Cause is the underlying error that triggered this error (for wrapping)
	Cause error
}

// Error implements the error interface.
func (e *RikuganError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *RikuganError) Unwrap() error {
	return e.Cause
}

// Is reports whether e matches target for errors.Is() checks.
// Two RikuganErrors match if they have the same Code.
func (e *RikuganError) Is(target error) bool {
	if t, ok := target.(*RikuganError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new RikuganError with the given code, category, and message.
func New(code string, category Category, message string) *RikuganError {
	return &RikuganError{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// WithContext adds a context key-value pair and returns the error for chaining.
func (e *RikuganError) WithContext(key, value string) *RikuganError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause wraps an underlying error and returns the error for chaining.
func (e *RikuganError) WithCause(cause error) *RikuganError {
	e.Cause = cause
	return e
}

// HasContext returns true if the error has context information.
func (e *RikuganError) HasContext() bool {
	return len(e.Context) > 0
}

// ContextString returns a formatted string of all context entries.
func (e *RikuganError) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	var parts []string
	for k, v := range e.Context {
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	return strings.Join(parts, ", ")
}

// Wrap wraps an existing error with a RikuganError.
func Wrap(err error, code string, category Category, message string) *RikuganError {
	return New(code, category, message).WithCause(err)
}

// AsRikuganError attempts to convert an error to a RikuganError.
func AsRikuganError(err error) (*RikuganError, bool) {
	if err == nil {
		return nil, false
	}
	if re, ok := err.(*RikuganError); ok {
		return re, true
	}
	return nil, false
}

// IsCategory checks if an error is a RikuganError with the given category.
func IsCategory(err error, category Category) bool {
	if re, ok := AsRikuganError(err); ok {
		return re.Category == category
	}
	return false
}

// IsCode checks if an error is a RikuganError with the given code.
func IsCode(err error, code string) bool {
	if re, ok := AsRikuganError(err); ok {
		return re.Code == code
	}
	return false
}

// -----------------------------------------------------------------------------
// Helper Constructors for Common Error Types
// -----------------------------------------------------------------------------

// ConfigError creates a new configuration error.
func ConfigError(code, message string) *RikuganError {
	return New(code, CategoryConfig, message)
}

// ConfigErrorf creates a new configuration error with formatted message.
func ConfigErrorf(code, format string, args ...interface{}) *RikuganError {
	return New(code, CategoryConfig, fmt.Sprintf(format, args...))
}

// ModelError creates a new model resolution or loading error.
func ModelError(code, message string) *RikuganError {
	return New(code, CategoryModel, message)
}

// ModelErrorf creates a new model error with formatted message.
func ModelErrorf(code, format string, args ...interface{}) *RikuganError {
	return New(code, CategoryModel, fmt.Sprintf(format, args...))
}

// SessionError creates a new session state error.
func SessionError(code, message string) *RikuganError {
	return New(code, CategorySession, message)
}

// StreamError creates a new streaming error.
// Use for WebSocket turn failures and frame delivery issues.
func StreamError(code, message string) *RikuganError {
	return New(code, CategoryStream, message)
}

// StreamErrorf creates a new streaming error with formatted message.
func StreamErrorf(code, format string, args ...interface{}) *RikuganError {
	return New(code, CategoryStream, fmt.Sprintf(format, args...))
}

// ValidationError creates a new validation error.
func ValidationError(code, message string) *RikuganError {
	return New(code, CategoryValidation, message)
}

// ValidationErrorf creates a new validation error with formatted message.
func ValidationErrorf(code, format string, args ...interface{}) *RikuganError {
	return New(code, CategoryValidation, fmt.Sprintf(format, args...))
}

// IOError creates a new file/IO error.
func IOError(code, message string) *RikuganError {
	return New(code, CategoryIO, message)
}

// InternalError creates a new internal/unexpected error.
func InternalError(code, message string) *RikuganError {
	return New(code, CategoryInternal, message)
}

// -----------------------------------------------------------------------------
// Wrapping Helpers
// -----------------------------------------------------------------------------

// WrapConfig wraps an error as a configuration error.
func WrapConfig(err error, code, message string) *RikuganError {
	return Wrap(err, code, CategoryConfig, message)
}

// WrapModel wraps an error as a model error.
func WrapModel(err error, code, message string) *RikuganError {
	return Wrap(err, code, CategoryModel, message)
}

// WrapStream wraps an error as a streaming error.
func WrapStream(err error, code, message string) *RikuganError {
	return Wrap(err, code, CategoryStream, message)
}

// WrapIO wraps an error as an IO error.
func WrapIO(err error, code, message string) *RikuganError {
	return Wrap(err, code, CategoryIO, message)
}

// WrapInternal wraps an error as an internal error.
func WrapInternal(err error, code, message string) *RikuganError {
	return Wrap(err, code, CategoryInternal, message)
}
