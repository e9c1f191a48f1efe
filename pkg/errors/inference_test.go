package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify_Nil(t *testing.T) {
	if result := Classify(nil, "generate"); result != nil {
		t.Errorf("Expected nil for nil error, got %v", result)
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	err := context.DeadlineExceeded
	result := Classify(err, "generate")

	if result == nil {
		t.Fatal("Expected non-nil InferenceError")
	}
	if result.Code != ErrCodeTimeout {
		t.Errorf("Expected ErrCodeTimeout, got %s", result.Code)
	}
	if result.Stage != "generate" {
		t.Errorf("Expected stage 'generate', got %s", result.Stage)
	}
	if result.Cause != err {
		t.Errorf("Expected cause to be original error")
	}
}

func TestClassify_Canceled(t *testing.T) {
	result := Classify(context.Canceled, "generate")

	if result == nil {
		t.Fatal("Expected non-nil InferenceError")
	}
	if result.Code != ErrCodeCancelled {
		t.Errorf("Expected ErrCodeCancelled, got %s", result.Code)
	}
}

func TestClassify_Quota(t *testing.T) {
	tests := []struct {
		name     string
		errorMsg string
	}{
		{"429 status", "HTTP 429 error"},
		{"quota", "quota exceeded for this project"},
		{"rate limit", "rate limit exceeded"},
		{"too many requests", "too many requests"},
		{"resource exhausted", "resource_exhausted from upstream"},
		{"uppercase", "Quota Exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(errors.New(tt.errorMsg), "generate")

			if result == nil {
				t.Fatal("Expected non-nil InferenceError")
			}
			if result.Code != ErrCodeQuotaExceeded {
				t.Errorf("Expected ErrCodeQuotaExceeded for '%s', got %s", tt.errorMsg, result.Code)
			}
		})
	}
}

func TestClassify_Transport(t *testing.T) {
	tests := []struct {
		name     string
		errorMsg string
	}{
		{"connection refused", "dial tcp: connection refused"},
		{"no such host", "dial tcp: lookup inference.example.com: no such host"},
		{"503 status", "HTTP 503 error"},
		{"unavailable", "service unavailable"},
		{"unexpected eof", "unexpected EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(errors.New(tt.errorMsg), "generate")

			if result == nil {
				t.Fatal("Expected non-nil InferenceError")
			}
			if result.Code != ErrCodeTransport {
				t.Errorf("Expected ErrCodeTransport for '%s', got %s", tt.errorMsg, result.Code)
			}
		})
	}
}

func TestClassify_Malformed(t *testing.T) {
	result := Classify(errors.New("cannot unmarshal string into Go value"), "parse_agent_reply")

	if result.Code != ErrCodeMalformedResponse {
		t.Errorf("Expected ErrCodeMalformedResponse, got %s", result.Code)
	}
}

func TestClassify_Unknown(t *testing.T) {
	result := Classify(errors.New("some random error"), "generate")

	if result.Code != ErrCodeUnknown {
		t.Errorf("Expected ErrCodeUnknown, got %s", result.Code)
	}
}

func TestClassify_PassesThroughClassified(t *testing.T) {
	original := NewMalformedResponse("parse", "missing resolution field", nil)
	wrapped := fmt.Errorf("attempt 2: %w", original)

	result := Classify(wrapped, "generate")
	if result != original {
		t.Errorf("Expected pre-classified error to pass through unchanged")
	}
}

func TestInferenceError_ErrorString(t *testing.T) {
	e := &InferenceError{
		Code:     ErrCodeTimeout,
		Stage:    "generate",
		Duration: 31 * time.Second,
		Timeout:  30 * time.Second,
	}
	got := e.Error()
	want := "timeout: generate timed out after 31s (limit: 30s)"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeTransport, true},
		{ErrCodeQuotaExceeded, false},
		{ErrCodeMalformedResponse, false},
		{ErrCodeCancelled, false},
		{ErrCodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &InferenceError{Code: tt.code, Message: "x"}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable(%s) = %v, want %v", tt.code, !tt.retryable, tt.retryable)
			}
		})
	}

	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestHelpers(t *testing.T) {
	timeout := &InferenceError{Code: ErrCodeTimeout}
	quota := &InferenceError{Code: ErrCodeQuotaExceeded}
	malformed := &InferenceError{Code: ErrCodeMalformedResponse}

	if !IsTimeout(timeout) || IsTimeout(quota) {
		t.Error("IsTimeout misclassified")
	}
	if !IsInferenceQuota(quota) || IsInferenceQuota(timeout) {
		t.Error("IsInferenceQuota misclassified")
	}
	if !IsMalformedResponse(malformed) || IsMalformedResponse(timeout) {
		t.Error("IsMalformedResponse misclassified")
	}

	wrapped := fmt.Errorf("outer: %w", timeout)
	if !IsTimeout(wrapped) {
		t.Error("IsTimeout must unwrap")
	}
}
