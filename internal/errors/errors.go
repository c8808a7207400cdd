// Package errors provides a lightweight structured error type (PackerError)
// for category-based classification and retry semantics across the build pipeline.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a packer error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Plan-level errors (fail the whole run before any build starts)
	CategoryResolve ErrorCategory = "resolve"

	// External system integration errors
	CategoryNetwork   ErrorCategory = "network"
	CategoryGit       ErrorCategory = "git"
	CategoryContainer ErrorCategory = "container"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// PackerError is a structured error with category, retryability, and context
type PackerError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PackerError
type ContextFields map[string]any

// Error implements the error interface
func (e *PackerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PackerError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PackerError) WithContext(key string, value any) *PackerError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PackerError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PackerError {
	return &PackerError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PackerError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PackerError {
	return &PackerError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// Retryable creates a new retryable PackerError
func Retryable(category ErrorCategory, severity ErrorSeverity, message string) *PackerError {
	return &PackerError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: true,
	}
}

// WrapRetryable creates a new retryable PackerError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *PackerError {
	return &PackerError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if pe, ok := err.(*PackerError); ok {
		return pe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if pe, ok := err.(*PackerError); ok {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PackerError
func GetCategory(err error) ErrorCategory {
	if pe, ok := err.(*PackerError); ok {
		return pe.Category
	}
	return CategoryInternal
}
