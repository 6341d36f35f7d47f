package controller

import (
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
)

// --- Request DTOs ---

// AbandonRetryRequest holds the input for abandoning a retry entry.
type AbandonRetryRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// --- Response DTOs ---

// RetryEntryResponse represents a retry ledger entry in API responses.
type RetryEntryResponse struct {
	ID               string     `json:"id"`
	PaymentID        string     `json:"payment_id"`
	FailedHistoryID  string     `json:"failed_history_id"`
	Status           string     `json:"status"`
	Strategy         string     `json:"strategy"`
	AttemptCount     int        `json:"attempt_count"`
	MaxRetryCount    int        `json:"max_retry_count"`
	NextRetryAt      *time.Time `json:"next_retry_at,omitempty"`
	LastErrorMessage string     `json:"last_error_message,omitempty"`
	LastErrorCode    string     `json:"last_error_code,omitempty"`
	AbandonReason    string     `json:"abandon_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// OutboxEntryResponse represents an outbox entry in API responses.
type OutboxEntryResponse struct {
	ID            string     `json:"id"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxAttempts   int        `json:"max_attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromRetryEntry converts a retry ledger entry to an API response.
func FromRetryEntry(e *retry.Entry) *RetryEntryResponse {
	return &RetryEntryResponse{
		ID:               e.ID.String(),
		PaymentID:        e.PaymentID.String(),
		FailedHistoryID:  e.FailedHistoryID.String(),
		Status:           string(e.Status),
		Strategy:         string(e.Strategy),
		AttemptCount:     e.AttemptCount,
		MaxRetryCount:    e.MaxRetryCount,
		NextRetryAt:      e.NextRetryAt,
		LastErrorMessage: e.LastErrorMessage,
		LastErrorCode:    e.LastErrorCode,
		AbandonReason:    e.AbandonReason,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

// FromOutboxEntry converts an outbox entry to an API response.
func FromOutboxEntry(e *outbox.Entry) *OutboxEntryResponse {
	return &OutboxEntryResponse{
		ID:            e.ID.String(),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID.String(),
		EventType:     e.EventType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxAttempts:   e.MaxAttempts,
		NextAttemptAt: e.NextAttemptAt,
		CreatedAt:     e.CreatedAt,
		PublishedAt:   e.PublishedAt,
	}
}
