package domain

import (
	"fmt"
	"time"
)

// Error codes for pipeline failure scenarios. Only INVALID_INPUT ever
// surfaces to the caller; source-level failures are recovered locally as
// empty results.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeSourceAPI    = "SOURCE_API_ERROR"
	ErrCodeRateLimit    = "RATE_LIMIT_EXCEEDED"
	ErrCodeStorage      = "STORAGE_ERROR"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// PipelineError is the standardized error carried across pipeline stages.
type PipelineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	QueryID   string    `json:"query_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPipelineError creates a new PipelineError with timestamp.
func NewPipelineError(code, message, details, queryID string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Details:   details,
		QueryID:   queryID,
		Timestamp: time.Now().UTC(),
	}
}

// RateLimitError signals that a source adapter's per-minute request quota is
// exhausted. The orchestrator treats it like any other adapter failure.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded for source %q (retry after %s)", ErrCodeRateLimit, e.Source, e.RetryAfter)
}

// ValidationError reports a caller input problem: the only error class that
// produces a top-level error result.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
