package retry

import (
	"context"
	"time"

	"github.com/cassiomorais/payment-relay/internal/infrastructure/gateway"
)

// TransactionManager runs fn inside a database transaction carried in
// the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Gateway re-invokes the billing gateway for a payment. Failures come
// back as *gateway.Error values carrying the code the ledger
// classifies on.
type Gateway interface {
	Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
}

// Lock is a best-effort mutual exclusion handle keyed on a payment,
// used by the stale detector so concurrent instances don't force-abort
// the same attempt twice.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory creates a lock for the given key.
type LockFactory func(key string, ttl time.Duration) Lock
