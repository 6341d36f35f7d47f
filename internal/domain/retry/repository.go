package retry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new retry entry. Implementations must reject
	// the insert with errors.ErrRetryConflict when a non-terminal
	// entry already exists for the same payment.
	Create(ctx context.Context, entry *Entry) error

	// GetByID returns a single entry.
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// FindNonTerminalByPayment returns the pending or in-progress
	// entry for a payment, or nil when none exists.
	FindNonTerminalByPayment(ctx context.Context, paymentID uuid.UUID) (*Entry, error)

	// ClaimDue atomically moves due pending entries to in-progress and
	// returns them. In-progress entries older than staleInProgress are
	// reclaimable (a prior worker crashed mid-attempt). Safe under
	// concurrent worker instances.
	ClaimDue(ctx context.Context, now time.Time, limit int, staleInProgress time.Duration) ([]*Entry, error)

	// Update persists state transitions and retry bookkeeping.
	Update(ctx context.Context, entry *Entry) error

	// ListByStatus returns entries in the given status, newest first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Entry, error)
}
