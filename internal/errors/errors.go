package errors

import (
	"fmt"
)

// KBError is the structured error type for kbindex.
// It provides context for error handling, logging, and user presentation.
type KBError struct {
	// Code is the unique error code (e.g., "ERR_201_DATA_DIR_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, State, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *KBError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *KBError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with KBError.
func (e *KBError) Is(target error) bool {
	if t, ok := target.(*KBError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *KBError) WithDetail(key, value string) *KBError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *KBError) WithSuggestion(suggestion string) *KBError {
	e.Suggestion = suggestion
	return e
}

// New creates a new KBError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *KBError {
	return &KBError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a KBError from an existing error.
// The error's message becomes the KBError message.
func Wrap(code string, err error) *KBError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *KBError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a malformed-record error.
// These are repaired locally by rescanning, never surfaced to the user.
func ValidationError(message string, cause error) *KBError {
	return New(ErrCodeInvalidRecord, message, cause)
}

// BusyError creates an error for a generation run attempted while one is active.
func BusyError(indexType string) *KBError {
	return New(ErrCodeRunActive,
		fmt.Sprintf("a generation run is already active for %q", indexType), nil).
		WithSuggestion("wait for the current run to finish or watch its progress")
}

// GenerationError creates an error for a failed generation run.
func GenerationError(message string, cause error) *KBError {
	return New(ErrCodeGenerationFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *KBError {
	return New(ErrCodeInternal, message, cause)
}

// IsBusy checks if an error indicates an active generation run.
func IsBusy(err error) bool {
	return GetCode(err) == ErrCodeRunActive
}

// IsValidation checks if an error is a record validation error.
func IsValidation(err error) bool {
	return GetCode(err) == ErrCodeInvalidRecord
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a KBError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ke, ok := err.(*KBError); ok {
		return ke.Retryable
	}
	return false
}

// GetCode extracts the error code from a KBError.
// Returns empty string if not a KBError.
func GetCode(err error) string {
	if ke, ok := err.(*KBError); ok {
		return ke.Code
	}
	return ""
}

// GetCategory extracts the category from a KBError.
// Returns empty string if not a KBError.
func GetCategory(err error) Category {
	if ke, ok := err.(*KBError); ok {
		return ke.Category
	}
	return ""
}
