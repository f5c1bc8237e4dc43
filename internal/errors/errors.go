package errors

import (
	"errors"
	"fmt"
)

// IngestError is the structured error type for nycingest.
// It carries enough context for logging and for the one-screen CLI report.
type IngestError struct {
	// Code is the unique error code (e.g., "ERR_401_MISSING_FIELD").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, Data, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, New(ErrCodeMissingField, "", nil)) works.
func (e *IngestError) Is(target error) bool {
	if t, ok := target.(*IngestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *IngestError) WithDetail(key, value string) *IngestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *IngestError) WithSuggestion(suggestion string) *IngestError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IngestError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *IngestError {
	return &IngestError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an IngestError from an existing error.
// The error's message becomes the IngestError message.
func Wrap(code string, err error) *IngestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks against a code.
var (
	ErrMissingField      = New(ErrCodeMissingField, "missing required field", nil)
	ErrInvalidAmount     = New(ErrCodeInvalidAmount, "invalid amount", nil)
	ErrInvalidPageSize   = New(ErrCodeInvalidPageSize, "invalid page size", nil)
	ErrMissingCredential = New(ErrCodeMissingCredential, "missing credential", nil)
	ErrIndexLocked       = New(ErrCodeIndexLocked, "index locked", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IngestError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// NetworkError creates an error for a failed API round trip.
func NetworkError(message string, cause error) *IngestError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// DataError creates an error for a record that cannot be indexed.
func DataError(code, message string) *IngestError {
	return New(code, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *IngestError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal reports whether the error must abort the current run.
func IsFatal(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first IngestError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from the first IngestError in the chain.
func GetCategory(err error) Category {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Category
	}
	return ""
}
