package ports

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory normalizes failures from speech-to-text and analysis
// providers.
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorOutage indicates the provider is unavailable
	ErrorOutage ErrorCategory = "outage"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorBadData indicates the provider returned something unusable
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorInvalidInput indicates the provider rejected what we sent
	ErrorInvalidInput ErrorCategory = "invalid_input"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"
)

func retryableCategory(category ErrorCategory) bool {
	return category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited
}

// TranscriptionError is a per-question failure. The pipeline retries
// retryable ones and otherwise substitutes a placeholder transcript.
type TranscriptionError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *TranscriptionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("transcription [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("transcription [%s]: %s", e.Category, e.Message)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Underlying
}

// NewTranscriptionError derives Retryable from the category.
func NewTranscriptionError(category ErrorCategory, message string, underlying error) *TranscriptionError {
	return &TranscriptionError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryableCategory(category),
	}
}

// AnalysisError is an aggregate-level failure. Once retries are exhausted it
// fails the processing run.
type AnalysisError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *AnalysisError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("analysis [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("analysis [%s]: %s", e.Category, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Underlying
}

// NewAnalysisError derives Retryable from the category.
func NewAnalysisError(category ErrorCategory, message string, underlying error) *AnalysisError {
	return &AnalysisError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryableCategory(category),
	}
}

// IsRetryable reports whether another attempt could succeed. Typed errors
// carry their own verdict; a deadline is a timeout; anything unclassified is
// treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TranscriptionError
	if errors.As(err, &te) {
		return te.Retryable
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// CategoryOf extracts the category, mapping deadlines to ErrorTimeout and
// anything else unclassified to ErrorOutage.
func CategoryOf(err error) ErrorCategory {
	var te *TranscriptionError
	if errors.As(err, &te) {
		return te.Category
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorOutage
}
