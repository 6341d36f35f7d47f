package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert creates a new outbox entry. It must be called inside the
	// business transaction (via the tx-in-context transaction manager)
	// so a rollback also discards the entry.
	Insert(ctx context.Context, entry *Entry) error

	// ClaimDue atomically claims up to limit due pending entries,
	// oldest first, and returns them. Entries stuck in the claimed
	// state longer than staleClaim are reclaimable (a prior instance
	// crashed mid-batch). Safe under concurrent publisher instances.
	ClaimDue(ctx context.Context, now time.Time, limit int, staleClaim time.Duration) ([]*Entry, error)

	// Update persists the status, retry bookkeeping and publish
	// timestamp of an entry after a publish attempt.
	Update(ctx context.Context, entry *Entry) error

	// GetByID returns a single entry.
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// ListByStatus returns entries in the given status, newest first.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Entry, error)

	// DeleteOlderThan purges entries created before the threshold,
	// regardless of status, and returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}
