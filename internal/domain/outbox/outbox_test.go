package outbox_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry() *outbox.Entry {
	payload, _ := json.Marshal(map[string]string{"payment_id": uuid.New().String()})
	return outbox.NewEntry("payment", uuid.New(), "payment.failed", payload)
}

func TestNewEntry_Defaults(t *testing.T) {
	aggregateID := uuid.New()
	payload := json.RawMessage(`{"amount":1000}`)
	e := outbox.NewEntry("payment", aggregateID, "payment.created", payload)

	assert.Equal(t, outbox.StatusPending, e.Status)
	assert.Equal(t, "payment", e.AggregateType)
	assert.Equal(t, aggregateID, e.AggregateID)
	assert.Equal(t, "payment.created", e.EventType)
	assert.Equal(t, 0, e.RetryCount)
	assert.Equal(t, outbox.DefaultMaxAttempts, e.MaxAttempts)
	assert.False(t, e.NextAttemptAt.After(time.Now()))
	assert.Nil(t, e.PublishedAt)
	assert.False(t, e.IsTerminal())
}

func TestMarkPublished(t *testing.T) {
	e := newEntry()
	now := time.Now()

	e.MarkPublished(now)

	assert.Equal(t, outbox.StatusPublished, e.Status)
	require.NotNil(t, e.PublishedAt)
	assert.Equal(t, now, *e.PublishedAt)
	assert.True(t, e.IsTerminal())
}

func TestMarkPublished_TerminalIsImmutable(t *testing.T) {
	e := newEntry()
	first := time.Now()
	e.MarkPublished(first)

	e.MarkPublished(first.Add(time.Hour))

	assert.Equal(t, first, *e.PublishedAt)
}

func TestRecordPublishFailure_Reschedules(t *testing.T) {
	e := newEntry()
	now := time.Now()
	claimedAt := now
	e.Status = outbox.StatusClaimed
	e.ClaimedAt = &claimedAt

	e.RecordPublishFailure(now)

	assert.Equal(t, outbox.StatusPending, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	assert.Nil(t, e.ClaimedAt)
	assert.Equal(t, now.Add(2*time.Second), e.NextAttemptAt)
}

func TestRecordPublishFailure_FailedAtCeiling(t *testing.T) {
	e := newEntry()
	now := time.Now()

	for i := 0; i < outbox.DefaultMaxAttempts; i++ {
		assert.False(t, e.IsTerminal(), "entry became terminal before the ceiling")
		e.RecordPublishFailure(now)
	}

	assert.Equal(t, outbox.StatusFailed, e.Status)
	assert.Equal(t, outbox.DefaultMaxAttempts, e.RetryCount)
	assert.True(t, e.IsTerminal())

	// Further failures must not change anything.
	e.RecordPublishFailure(now)
	assert.Equal(t, outbox.DefaultMaxAttempts, e.RetryCount)
}

func TestPublishBackoff_Doubles(t *testing.T) {
	assert.Equal(t, 2*time.Second, outbox.PublishBackoff(1))
	assert.Equal(t, 4*time.Second, outbox.PublishBackoff(2))
	assert.Equal(t, 8*time.Second, outbox.PublishBackoff(3))
	assert.Equal(t, 1024*time.Second, outbox.PublishBackoff(10))
}

func TestPublishBackoff_CappedAtOneHour(t *testing.T) {
	assert.Equal(t, time.Hour, outbox.PublishBackoff(12))
	assert.Equal(t, time.Hour, outbox.PublishBackoff(13))
	assert.Equal(t, time.Hour, outbox.PublishBackoff(100))
}

func TestPublishBackoff_NonPositiveCount(t *testing.T) {
	assert.Equal(t, time.Second, outbox.PublishBackoff(0))
	assert.Equal(t, time.Second, outbox.PublishBackoff(-1))
}
