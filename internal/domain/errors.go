package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no row matches
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFormat is returned for input files that are neither CSV nor VCF
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidVariant marks a string that is not a chrom-pos-ref-alt key
	ErrInvalidVariant = errors.New("invalid canonical variant")

	// ErrNoTranscripts is returned when the resolver service answers with an empty transcript list
	ErrNoTranscripts = errors.New("no transcripts returned")

	// ErrServiceUnavailable is returned while an external service's circuit breaker is open
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// APIError is the JSON error body returned by the HTTP surface
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes for the HTTP surface
const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeIngestFailed  = "INGEST_FAILED"
	CodeFileError     = "FILE_ERROR"
)
