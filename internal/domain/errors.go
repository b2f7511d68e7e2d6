package domain

import (
	"fmt"
	"time"
)

// PipelineError represents a standardized error response
type PipelineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput      = "INVALID_INPUT"
	ErrOracleUnavailable = "ORACLE_UNAVAILABLE"
	ErrExtractionFailed  = "EXTRACTION_FAILED"
	ErrCacheError        = "CACHE_ERROR"
	ErrStorageError      = "STORAGE_ERROR"
	ErrNotFound          = "NOT_FOUND"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrValidation        = "VALIDATION_ERROR"
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

// NewPipelineError creates a new PipelineError with timestamp
func NewPipelineError(code, message, details, requestID string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
