package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the payment attempt owned by the payment domain. This
// subsystem only reads its amount and title for retried gateway calls
// and records the gateway confirmation key on success; it never
// mutates the payment itself.
type Payment struct {
	ID             uuid.UUID
	Title          string
	AmountCents    int64
	Method         Method
	IdempotencyKey uuid.UUID
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Method string

const (
	MethodCreditCard   Method = "credit_card"
	MethodBankTransfer Method = "bank_transfer"
)

type Status string

const (
	StatusReady     Status = "ready"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// History is one append-only row in a payment's status trail. The
// latest row is the payment attempt's current state.
type History struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	Status    HistoryStatus
	CreatedAt time.Time
}

type HistoryStatus string

const (
	HistoryReady      HistoryStatus = "ready"
	HistoryInProgress HistoryStatus = "in_progress"
	HistoryDone       HistoryStatus = "done"
	HistoryAborted    HistoryStatus = "aborted"
)

// IsIntermediate reports whether the status is one a live gateway call
// should move past; attempts parked here too long are considered stale.
func (s HistoryStatus) IsIntermediate() bool {
	return s == HistoryReady || s == HistoryInProgress
}

func NewHistory(paymentID uuid.UUID, status HistoryStatus) *History {
	return &History{
		ID:        uuid.New(),
		PaymentID: paymentID,
		Status:    status,
		CreatedAt: time.Now(),
	}
}

// ConfirmationKey records the gateway's confirmation for a completed
// payment attempt.
type ConfirmationKey struct {
	ID          uuid.UUID
	PaymentID   uuid.UUID
	Key         string
	ConfirmedAt time.Time
}

func NewConfirmationKey(paymentID uuid.UUID, key string, confirmedAt time.Time) *ConfirmationKey {
	return &ConfirmationKey{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		Key:         key,
		ConfirmedAt: confirmedAt,
	}
}
