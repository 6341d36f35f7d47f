package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_CreatesPendingEntry(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	appender := NewAppender(repo)
	aggregateID := uuid.New()
	payload := json.RawMessage(`{"amount":4500}`)

	entry, err := appender.Append(context.Background(), "payment", aggregateID, "payment.failed", payload)
	require.NoError(t, err)

	assert.Equal(t, outbox.StatusPending, entry.Status)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, "payment.failed", entry.EventType)

	stored, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, stored.ID)
}

func TestAppend_RejectsEmptyEventType(t *testing.T) {
	appender := NewAppender(testutil.NewMockOutboxRepository())

	_, err := appender.Append(context.Background(), "payment", uuid.New(), "", nil)
	assert.Error(t, err)
}

func TestAppend_PropagatesInsertError(t *testing.T) {
	repo := testutil.NewMockOutboxRepository()
	repo.InsertFunc = func(ctx context.Context, entry *outbox.Entry) error {
		return errors.New("connection reset")
	}
	appender := NewAppender(repo)

	_, err := appender.Append(context.Background(), "payment", uuid.New(), "payment.created", nil)
	assert.Error(t, err)
}
