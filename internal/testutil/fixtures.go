package testutil

import (
	"encoding/json"
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/domain/payment"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/google/uuid"
)

func NewTestPayment(title string, amountCents int64) *payment.Payment {
	now := time.Now()
	return &payment.Payment{
		ID:             uuid.New(),
		Title:          title,
		AmountCents:    amountCents,
		Method:         payment.MethodCreditCard,
		IdempotencyKey: uuid.New(),
		Status:         payment.StatusReady,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func NewTestOutboxEntry(eventType string) *outbox.Entry {
	payload, _ := json.Marshal(map[string]string{"test": "payload"})
	return outbox.NewEntry("payment", uuid.New(), eventType, payload)
}

// NewDueOutboxEntry returns a pending entry already due at now.
func NewDueOutboxEntry(eventType string, now time.Time) *outbox.Entry {
	e := NewTestOutboxEntry(eventType)
	e.CreatedAt = now.Add(-time.Minute)
	e.NextAttemptAt = now.Add(-time.Second)
	return e
}

func NewTestRetryEntry(errorCode string, now time.Time) *retry.Entry {
	return retry.NewEntry(uuid.New(), uuid.New(), "gateway rejected the charge", errorCode, now, retry.DefaultBackoffPolicy())
}

// NewDueRetryEntry returns a pending entry whose next attempt is
// already due at now.
func NewDueRetryEntry(errorCode string, now time.Time) *retry.Entry {
	e := NewTestRetryEntry(errorCode, now.Add(-2*time.Hour))
	due := now.Add(-time.Second)
	e.NextRetryAt = &due
	return e
}
