package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "publish_failed",
				Message: "failed to publish event",
				Err:     errors.New("broker timeout"),
			},
			expected: "failed to publish event: broker timeout",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "invalid_state",
				Message: "cannot transition retry entry",
				Err:     nil,
			},
			expected: "cannot transition retry entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewDomainError("publish_failed", "failed to publish event", inner)

	assert.True(t, errors.Is(err, inner))
}

func TestDomainError_WrapsSentinel(t *testing.T) {
	err := NewDomainError("retry_conflict", "open entry exists", ErrRetryConflict)

	assert.True(t, errors.Is(err, ErrRetryConflict))
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("reason", "must not be empty")

	assert.Equal(t, "validation failed for field reason: must not be empty", err.Error())
}
