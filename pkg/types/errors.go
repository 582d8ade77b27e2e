package types

import (
	"fmt"
	"strings"
)

// ValidationError represents an error raised by a guardrail check.
type ValidationError struct {
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with the given message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// MissingFieldsError reports mandatory columns absent from a row. It is
// raised before any filesystem or network action for the row.
type MissingFieldsError struct {
	App    string
	Fields []string
}

// Error returns the error message naming every missing field.
func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields for %s: %s", e.App, strings.Join(e.Fields, ", "))
}

// IsMissingFieldsError checks if an error is a MissingFieldsError.
func IsMissingFieldsError(err error) bool {
	_, ok := err.(*MissingFieldsError)
	return ok
}
