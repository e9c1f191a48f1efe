package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode classifies an inference call failure.
type ErrorCode string

const (
	ErrCodeTimeout           ErrorCode = "timeout"
	ErrCodeQuotaExceeded     ErrorCode = "quota_exceeded"
	ErrCodeTransport         ErrorCode = "transport_error"
	ErrCodeMalformedResponse ErrorCode = "malformed_response"
	ErrCodeCancelled         ErrorCode = "cancelled"
	ErrCodeUnknown           ErrorCode = "unknown"
)

// InferenceError is a structured error for inference capability failures.
type InferenceError struct {
	Code     ErrorCode
	Stage    string
	Message  string
	Duration time.Duration
	Timeout  time.Duration
	Cause    error
}

func (e *InferenceError) Error() string {
	if e.Timeout > 0 && e.Duration > 0 {
		return fmt.Sprintf("%s: %s timed out after %s (limit: %s)", e.Code, e.Stage, e.Duration.Truncate(time.Second), e.Timeout.Truncate(time.Second))
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// NewMalformedResponse builds an InferenceError for output that could not be
// parsed into the structure the prompt demanded.
func NewMalformedResponse(stage, message string, cause error) *InferenceError {
	return &InferenceError{
		Code:    ErrCodeMalformedResponse,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Classify inspects an error from an inference call and returns an
// *InferenceError with the appropriate code. Errors that already carry a
// classification are returned unchanged.
func Classify(err error, stage string) *InferenceError {
	if err == nil {
		return nil
	}

	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie
	}

	ce := &InferenceError{
		Stage: stage,
		Cause: err,
	}

	if errors.Is(err, context.DeadlineExceeded) {
		ce.Code = ErrCodeTimeout
		ce.Message = "operation timed out"
		return ce
	}

	if errors.Is(err, context.Canceled) {
		ce.Code = ErrCodeCancelled
		ce.Message = "operation cancelled"
		return ce
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	// Upstream quota patterns (HTTP 429 and provider-specific spellings).
	if strings.Contains(lower, "429") || strings.Contains(lower, "quota") ||
		strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "resource_exhausted") {
		ce.Code = ErrCodeQuotaExceeded
		ce.Message = msg
		return ce
	}

	// Deadline patterns surfaced as plain text by HTTP clients.
	if strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "timeout") {
		ce.Code = ErrCodeTimeout
		ce.Message = msg
		return ce
	}

	// Parse and structure failures.
	if strings.Contains(lower, "unmarshal") || strings.Contains(lower, "parse") ||
		strings.Contains(lower, "unexpected end of json") || strings.Contains(lower, "malformed") {
		ce.Code = ErrCodeMalformedResponse
		ce.Message = msg
		return ce
	}

	// Network-ish failures.
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "no such host") || strings.Contains(lower, "503") ||
		strings.Contains(lower, "eof") || strings.Contains(lower, "broken pipe") {
		ce.Code = ErrCodeTransport
		ce.Message = msg
		return ce
	}

	ce.Code = ErrCodeUnknown
	ce.Message = msg
	return ce
}

// IsTimeout returns true if the error is a classified timeout.
func IsTimeout(err error) bool {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeTimeout
	}
	return false
}

// IsInferenceQuota returns true if the error is an upstream quota failure
// reported by the inference capability (distinct from the local limiter's
// ErrQuotaExceeded).
func IsInferenceQuota(err error) bool {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeQuotaExceeded
	}
	return false
}

// IsMalformedResponse returns true if the error is a classified parse failure.
func IsMalformedResponse(err error) bool {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeMalformedResponse
	}
	return false
}

// IsRetryable returns true if the error is likely transient and worth retrying.
// Retryability is looked up in the ErrorCodeRegistry; unknown codes default to
// non-retryable.
func IsRetryable(err error) bool {
	var ie *InferenceError
	if errors.As(err, &ie) {
		if info, ok := ErrorCodeRegistry[ie.Code]; ok {
			return info.Retryable
		}
		return false
	}
	return false
}
