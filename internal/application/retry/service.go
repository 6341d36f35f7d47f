package retry

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service exposes the retry-ledger operations callers use directly:
// creating an entry after a failed gateway call and abandoning one
// manually. The periodic re-invocation lives in Worker.
type Service struct {
	repo      retry.Repository
	txManager TransactionManager
	logger    zerolog.Logger
	metrics   *observability.Metrics
	policy    retry.BackoffPolicy
	now       func() time.Time
}

func NewService(
	repo retry.Repository,
	txManager TransactionManager,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	policy retry.BackoffPolicy,
) *Service {
	if policy.BaseDelay <= 0 {
		policy = retry.DefaultBackoffPolicy()
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
		metrics:   metrics,
		policy:    policy,
		now:       time.Now,
	}
}

// CreateEntry records a failed gateway attempt for later retry. It
// rejects with errors.ErrRetryConflict when a non-terminal entry
// already exists for the payment; duplicates are surfaced to the
// caller, never silently merged.
func (s *Service) CreateEntry(ctx context.Context, paymentID, failedHistoryID uuid.UUID, errorMessage, errorCode string) (*retry.Entry, error) {
	var entry *retry.Entry
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindNonTerminalByPayment(txCtx, paymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainErrors.ErrRetryConflict
		}

		entry = retry.NewEntry(paymentID, failedHistoryID, errorMessage, errorCode, s.now(), s.policy)
		return s.repo.Create(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("retry_id", entry.ID.String()).
		Str("payment_id", paymentID.String()).
		Str("strategy", string(entry.Strategy)).
		Int("max_retry_count", entry.MaxRetryCount).
		Str("error_code", errorCode).
		Msg("Payment retry entry created")

	if entry.Status == retry.StatusExhausted {
		// Zero-ceiling error class: the entry exists only as a "do not
		// retry" record for operators.
		s.logger.Warn().
			Str("retry_id", entry.ID.String()).
			Str("payment_id", paymentID.String()).
			Str("error_code", errorCode).
			Msg("Error class is not retryable, entry exhausted on arrival")
		if s.metrics != nil {
			s.metrics.RetryExhaustedTotal.Inc()
		}
	}
	return entry, nil
}

// Abandon terminates a retry entry manually.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID, reason string) (*retry.Entry, error) {
	var entry *retry.Entry
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		entry, err = s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := entry.MarkAbandoned(reason, s.now()); err != nil {
			return err
		}
		return s.repo.Update(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("retry_id", id.String()).
		Str("payment_id", entry.PaymentID.String()).
		Str("reason", reason).
		Msg("Payment retry abandoned")
	if s.metrics != nil {
		s.metrics.RetryAbandonedTotal.Inc()
	}
	return entry, nil
}

// Get returns a single retry entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*retry.Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByStatus returns entries in the given status, newest first.
func (s *Service) ListByStatus(ctx context.Context, status retry.Status, limit int) ([]*retry.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list retry entries: %w", err)
	}
	return entries, nil
}
