package retry

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(repo *testutil.MockRetryRepository, now time.Time) *Service {
	s := NewService(repo, testutil.NoopTxManager{}, zerolog.Nop(), nil, retry.DefaultBackoffPolicy())
	s.now = func() time.Time { return now }
	return s
}

func TestCreateEntry_TransientError(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockRetryRepository()
	s := newTestService(repo, now)

	entry, err := s.CreateEntry(context.Background(), uuid.New(), uuid.New(), "gateway timed out", "TIMEOUT_504")
	require.NoError(t, err)

	assert.Equal(t, retry.StatusPending, entry.Status)
	assert.Equal(t, retry.StrategyExponentialBackoff, entry.Strategy)
	assert.Equal(t, 5, entry.MaxRetryCount)
	require.NotNil(t, entry.NextRetryAt)
	assert.Equal(t, now.Add(2*time.Minute), *entry.NextRetryAt)
}

func TestCreateEntry_HardDecline(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	s := newTestService(repo, time.Now())

	entry, err := s.CreateEntry(context.Background(), uuid.New(), uuid.New(), "card declined", "CARD_DECLINED")
	require.NoError(t, err)

	assert.Equal(t, retry.StatusExhausted, entry.Status)
	assert.True(t, entry.IsTerminal())
}

func TestCreateEntry_RejectsSecondOpenEntry(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	s := newTestService(repo, time.Now())
	paymentID := uuid.New()

	_, err := s.CreateEntry(context.Background(), paymentID, uuid.New(), "err", "TIMEOUT_504")
	require.NoError(t, err)

	_, err = s.CreateEntry(context.Background(), paymentID, uuid.New(), "err again", "TIMEOUT_504")
	assert.ErrorIs(t, err, domainErrors.ErrRetryConflict)
}

func TestCreateEntry_AllowsNewEntryAfterTerminal(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockRetryRepository()
	s := newTestService(repo, now)
	paymentID := uuid.New()

	first, err := s.CreateEntry(context.Background(), paymentID, uuid.New(), "err", "TIMEOUT_504")
	require.NoError(t, err)

	_, err = s.Abandon(context.Background(), first.ID, "operator gave up")
	require.NoError(t, err)

	_, err = s.CreateEntry(context.Background(), paymentID, uuid.New(), "new failure", "TIMEOUT_504")
	assert.NoError(t, err)
}

func TestAbandon(t *testing.T) {
	now := time.Now()
	repo := testutil.NewMockRetryRepository()
	s := newTestService(repo, now)

	entry, err := s.CreateEntry(context.Background(), uuid.New(), uuid.New(), "err", "TIMEOUT_504")
	require.NoError(t, err)

	abandoned, err := s.Abandon(context.Background(), entry.ID, "customer cancelled")
	require.NoError(t, err)

	assert.Equal(t, retry.StatusAbandoned, abandoned.Status)
	assert.Equal(t, "customer cancelled", abandoned.AbandonReason)
	assert.Nil(t, abandoned.NextRetryAt)
}

func TestAbandon_TerminalRejected(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	s := newTestService(repo, time.Now())

	entry, err := s.CreateEntry(context.Background(), uuid.New(), uuid.New(), "declined", "CARD_DECLINED")
	require.NoError(t, err)

	_, err = s.Abandon(context.Background(), entry.ID, "too late")
	assert.ErrorIs(t, err, domainErrors.ErrRetryTerminal)
}

func TestAbandon_NotFound(t *testing.T) {
	s := newTestService(testutil.NewMockRetryRepository(), time.Now())

	_, err := s.Abandon(context.Background(), uuid.New(), "reason")
	assert.ErrorIs(t, err, domainErrors.ErrRetryEntryNotFound)
}

func TestListByStatus_ClampsLimit(t *testing.T) {
	repo := testutil.NewMockRetryRepository()
	s := NewService(repo, testutil.NoopTxManager{}, zerolog.Nop(), nil, retry.DefaultBackoffPolicy())

	// Seed beyond the default page size.
	now := time.Now()
	for i := 0; i < 60; i++ {
		e := testutil.NewTestRetryEntry("TIMEOUT_504", now)
		require.NoError(t, repo.Create(context.Background(), e))
	}

	entries, err := s.ListByStatus(context.Background(), retry.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}
