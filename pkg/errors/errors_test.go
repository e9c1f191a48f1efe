package errors

import (
	"fmt"
	"testing"
)

func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
	}{
		{"not found", ErrNotFound, IsNotFound},
		{"conflict", ErrConflict, IsConflict},
		{"validation", ErrValidation, IsValidation},
		{"invalid state", ErrInvalidState, IsInvalidState},
		{"quota exceeded", ErrQuotaExceeded, IsQuotaExceeded},
		{"unauthorized", ErrUnauthorized, IsUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.checker(tt.err) {
				t.Errorf("checker failed for bare sentinel")
			}
			wrapped := fmt.Errorf("meeting m-1: %w", tt.err)
			if !tt.checker(wrapped) {
				t.Errorf("checker failed for wrapped sentinel")
			}
			if tt.checker(fmt.Errorf("unrelated")) {
				t.Errorf("checker matched unrelated error")
			}
		})
	}
}
