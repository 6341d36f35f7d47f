package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/google/uuid"
)

// Appender is the write contract business services use to reserve an
// event for publication. Append must be called inside the caller's
// transaction (through the tx-in-context TransactionManager) so a
// rollback of the business change also discards the entry. No other
// mutation is exposed to callers; only the publisher advances entries
// and only the sweeper deletes them.
type Appender struct {
	repo outbox.Repository
}

func NewAppender(repo outbox.Repository) *Appender {
	return &Appender{repo: repo}
}

// Append reserves a pending entry for the given event.
func (a *Appender) Append(ctx context.Context, aggregateType string, aggregateID uuid.UUID, eventType string, payload json.RawMessage) (*outbox.Entry, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event type must not be empty")
	}
	entry := outbox.NewEntry(aggregateType, aggregateID, eventType, payload)
	if err := a.repo.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("append outbox entry: %w", err)
	}
	return entry, nil
}
