package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(repo *testutil.MockOutboxRepository, pub *testutil.MockEventPublisher, now time.Time) *Publisher {
	p := NewPublisher(repo, pub, zerolog.Nop(), nil, PublisherConfig{BatchSize: 10, ClaimTimeout: time.Minute})
	p.now = func() time.Time { return now }
	return p
}

func TestPublisherTick_PublishesOldestFirst(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()

	older := testutil.NewDueOutboxEntry("payment.created", now)
	older.CreatedAt = now.Add(-3 * time.Minute)
	newer := testutil.NewDueOutboxEntry("payment.failed", now)
	newer.CreatedAt = now.Add(-1 * time.Minute)
	require.NoError(t, repo.Insert(context.Background(), newer))
	require.NoError(t, repo.Insert(context.Background(), older))

	p := newTestPublisher(repo, pub, now)
	require.NoError(t, p.Tick(context.Background()))

	published := pub.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "payment.created", published[0].Topic)
	assert.Equal(t, older.AggregateID.String(), published[0].Key)
	assert.Equal(t, "payment.failed", published[1].Topic)

	got, err := repo.GetByID(context.Background(), older.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPublished, got.Status)
	assert.NotNil(t, got.PublishedAt)
}

func TestPublisherTick_NotDueEntriesStayPending(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()

	future := testutil.NewTestOutboxEntry("payment.created")
	future.NextAttemptAt = now.Add(time.Hour)
	require.NoError(t, repo.Insert(context.Background(), future))

	p := newTestPublisher(repo, pub, now)
	require.NoError(t, p.Tick(context.Background()))

	assert.Empty(t, pub.Published())
	got, err := repo.GetByID(context.Background(), future.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, got.Status)
}

func TestPublisherTick_FailureReschedulesWithBackoff(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()
	pub.PublishFunc = func(ctx context.Context, topic, key string, payload []byte) error {
		return errors.New("broker unavailable")
	}

	entry := testutil.NewDueOutboxEntry("payment.created", now)
	require.NoError(t, repo.Insert(context.Background(), entry))

	p := newTestPublisher(repo, pub, now)
	require.NoError(t, p.Tick(context.Background()))

	got, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, now.Add(2*time.Second), got.NextAttemptAt)
	assert.Nil(t, got.ClaimedAt)
}

func TestPublisherTick_OneFailureDoesNotStopBatch(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()
	pub.PublishFunc = func(ctx context.Context, topic, key string, payload []byte) error {
		if topic == "payment.failed" {
			return errors.New("broker rejected message")
		}
		return nil
	}

	bad := testutil.NewDueOutboxEntry("payment.failed", now)
	bad.CreatedAt = now.Add(-2 * time.Minute)
	good := testutil.NewDueOutboxEntry("payment.created", now)
	good.CreatedAt = now.Add(-1 * time.Minute)
	require.NoError(t, repo.Insert(context.Background(), bad))
	require.NoError(t, repo.Insert(context.Background(), good))

	p := newTestPublisher(repo, pub, now)
	require.NoError(t, p.Tick(context.Background()))

	gotBad, err := repo.GetByID(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, gotBad.Status)
	assert.Equal(t, 1, gotBad.RetryCount)

	gotGood, err := repo.GetByID(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPublished, gotGood.Status)
}

func TestPublisherTick_EntryFailsAfterTenAttempts(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()
	pub.PublishFunc = func(ctx context.Context, topic, key string, payload []byte) error {
		return errors.New("broker unavailable")
	}

	entry := testutil.NewDueOutboxEntry("payment.created", now)
	require.NoError(t, repo.Insert(context.Background(), entry))

	p := newTestPublisher(repo, pub, now)
	for i := 0; i < outbox.DefaultMaxAttempts; i++ {
		// Bring the entry due again regardless of backoff.
		got, err := repo.GetByID(context.Background(), entry.ID)
		require.NoError(t, err)
		if got.Status == outbox.StatusPending {
			got.NextAttemptAt = now.Add(-time.Second)
			require.NoError(t, repo.Update(context.Background(), got))
		}
		require.NoError(t, p.Tick(context.Background()))
	}

	got, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusFailed, got.Status)
	assert.Equal(t, outbox.DefaultMaxAttempts, got.RetryCount)

	// Failed entries are never claimed again.
	require.NoError(t, p.Tick(context.Background()))
	gotAfter, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.DefaultMaxAttempts, gotAfter.RetryCount)
}

func TestPublisherTick_StaleClaimIsReclaimed(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()

	entry := testutil.NewDueOutboxEntry("payment.created", now)
	entry.Status = outbox.StatusClaimed
	claimedAt := now.Add(-5 * time.Minute)
	entry.ClaimedAt = &claimedAt
	require.NoError(t, repo.Insert(context.Background(), entry))

	p := newTestPublisher(repo, pub, now)
	require.NoError(t, p.Tick(context.Background()))

	require.Len(t, pub.Published(), 1)
	got, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPublished, got.Status)
}

func TestPublisherTick_FreshClaimIsNotReclaimed(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockOutboxRepository()
	pub := testutil.NewMockEventPublisher()

	entry := testutil.NewDueOutboxEntry("payment.created", now)
	entry.Status = outbox.StatusClaimed
	claimedAt := now.Add(-10 * time.Second)
	entry.ClaimedAt = &claimedAt
	require.NoError(t, repo.Insert(context.Background(), entry))

	p := newTestPublisher(repo, pub, now)
	require.NoError(t, p.Tick(context.Background()))

	assert.Empty(t, pub.Published())
}
