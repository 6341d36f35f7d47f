package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the read-side view of the payment aggregate this
// subsystem needs for retried gateway calls.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
}

// HistoryRepository manages the append-only status trail.
type HistoryRepository interface {
	// Append inserts a new history row.
	Append(ctx context.Context, history *History) error

	// FindStale returns payments whose most recent history row is an
	// intermediate status created before the threshold.
	FindStale(ctx context.Context, threshold time.Time) ([]*History, error)
}

// ConfirmationKeyRepository records gateway confirmations.
type ConfirmationKeyRepository interface {
	Insert(ctx context.Context, key *ConfirmationKey) error
}
