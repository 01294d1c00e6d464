// Package errors provides a lightweight structured error type (DeployError)
// for category-based classification and exit code mapping in the CLI and HTTP server.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a deploy error for classification
type ErrorCategory string

const (
	// User-facing invocation and configuration errors
	CategoryValidation ErrorCategory = "validation"
	CategoryConfig     ErrorCategory = "config"

	// Source acquisition errors (uploads, clones)
	CategorySource  ErrorCategory = "source"
	CategoryNetwork ErrorCategory = "network"

	// Staging and filesystem errors
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
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// DeployError is a structured error with category, retryability, and context
type DeployError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for DeployError
type ContextFields map[string]any

// Error implements the error interface
func (e *DeployError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *DeployError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *DeployError) WithContext(key string, value any) *DeployError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new DeployError
func New(category ErrorCategory, severity ErrorSeverity, message string) *DeployError {
	return &DeployError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new DeployError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *DeployError {
	return &DeployError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable DeployError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *DeployError {
	return &DeployError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// As extracts a DeployError from an error chain.
func As(err error) (*DeployError, bool) {
	var de *DeployError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if de, ok := As(err); ok {
		return de.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if de, ok := As(err); ok {
		return de.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a DeployError
func GetCategory(err error) ErrorCategory {
	if de, ok := As(err); ok {
		return de.Category
	}
	return CategoryInternal
}
