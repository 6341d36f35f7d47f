package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/payment"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/gateway"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// WorkerConfig carries the retry worker tunables.
type WorkerConfig struct {
	BatchSize         int
	InProgressTimeout time.Duration
	Policy            retry.BackoffPolicy
}

// Worker re-invokes the billing gateway for due retry entries. The
// claim step doubles as the markInProgress transition: entries come
// back from the repository already in progress, invisible to other
// worker instances.
type Worker struct {
	retryRepo   retry.Repository
	paymentRepo payment.Repository
	historyRepo payment.HistoryRepository
	keyRepo     payment.ConfirmationKeyRepository
	gateway     Gateway
	txManager   TransactionManager
	logger      zerolog.Logger
	metrics     *observability.Metrics
	cfg         WorkerConfig
	now         func() time.Time
}

func NewWorker(
	retryRepo retry.Repository,
	paymentRepo payment.Repository,
	historyRepo payment.HistoryRepository,
	keyRepo payment.ConfirmationKeyRepository,
	gw Gateway,
	txManager TransactionManager,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	cfg WorkerConfig,
) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.InProgressTimeout <= 0 {
		cfg.InProgressTimeout = 10 * time.Minute
	}
	if cfg.Policy.BaseDelay <= 0 {
		cfg.Policy = retry.DefaultBackoffPolicy()
	}
	return &Worker{
		retryRepo:   retryRepo,
		paymentRepo: paymentRepo,
		historyRepo: historyRepo,
		keyRepo:     keyRepo,
		gateway:     gw,
		txManager:   txManager,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Tick claims due entries and processes each independently: one
// entry's gateway failure never stops the rest of the batch.
func (w *Worker) Tick(ctx context.Context) error {
	entries, err := w.retryRepo.ClaimDue(ctx, w.now(), w.cfg.BatchSize, w.cfg.InProgressTimeout)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	w.logger.Info().Int("count", len(entries)).Msg("Retryable payments claimed")

	tracer := otel.Tracer("retry")
	for _, entry := range entries {
		func() {
			attemptCtx, span := tracer.Start(ctx, "retry.attempt")
			span.SetAttributes(
				attribute.String("payment_id", entry.PaymentID.String()),
				attribute.Int("attempt", entry.AttemptCount+1),
			)
			defer span.End()

			w.processEntry(attemptCtx, entry)
		}()
	}
	return nil
}

func (w *Worker) processEntry(ctx context.Context, entry *retry.Entry) {
	logger := w.logger.With().
		Str("retry_id", entry.ID.String()).
		Str("payment_id", entry.PaymentID.String()).
		Logger()

	logger.Info().
		Int("attempt", entry.AttemptCount+1).
		Int("max_retry_count", entry.MaxRetryCount).
		Msg("Retrying payment")

	if err := w.historyRepo.Append(ctx, payment.NewHistory(entry.PaymentID, payment.HistoryInProgress)); err != nil {
		logger.Error().Err(err).Msg("Failed to record in-progress history, releasing entry")
		w.release(ctx, entry, logger)
		return
	}

	p, err := w.paymentRepo.GetByID(ctx, entry.PaymentID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load payment for retry")
		w.recordFailure(ctx, entry, "payment lookup failed: "+err.Error(), "PAYMENT_LOOKUP_ERROR", logger)
		return
	}

	result, err := w.gateway.Charge(ctx, gateway.ChargeRequest{
		Amount:    p.AmountCents,
		OrderID:   p.ID.String(),
		OrderName: p.Title,
	})
	if err != nil {
		code := "UNKNOWN_ERROR"
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) {
			code = gwErr.Code
		}
		logger.Error().Err(err).Str("error_code", code).Msg("Payment retry failed")
		w.recordFailure(ctx, entry, err.Error(), code, logger)
		return
	}

	w.recordSuccess(ctx, entry, result.PaymentKey, logger)
}

// recordSuccess commits the confirmation key, the DONE history row and
// the terminal succeeded transition in one transaction.
func (w *Worker) recordSuccess(ctx context.Context, entry *retry.Entry, paymentKey string, logger zerolog.Logger) {
	now := w.now()
	err := w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.historyRepo.Append(txCtx, payment.NewHistory(entry.PaymentID, payment.HistoryDone)); err != nil {
			return err
		}
		if err := w.keyRepo.Insert(txCtx, payment.NewConfirmationKey(entry.PaymentID, paymentKey, now)); err != nil {
			return err
		}
		if err := entry.MarkSucceeded(now); err != nil {
			return err
		}
		return w.retryRepo.Update(txCtx, entry)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist retry success")
		return
	}

	logger.Info().Msg("Payment retry succeeded")
	if w.metrics != nil {
		w.metrics.RetryAttemptsTotal.WithLabelValues("success").Inc()
	}
}

func (w *Worker) recordFailure(ctx context.Context, entry *retry.Entry, errorMessage, errorCode string, logger zerolog.Logger) {
	now := w.now()
	err := w.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := w.historyRepo.Append(txCtx, payment.NewHistory(entry.PaymentID, payment.HistoryAborted)); err != nil {
			return err
		}
		if err := entry.RecordFailedAttempt(errorMessage, errorCode, now, w.cfg.Policy); err != nil {
			return err
		}
		return w.retryRepo.Update(txCtx, entry)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to persist retry failure")
		return
	}

	if w.metrics != nil {
		w.metrics.RetryAttemptsTotal.WithLabelValues("failure").Inc()
	}
	if entry.Status == retry.StatusExhausted {
		// Terminal: no further automatic action, operators take over.
		logger.Error().
			Int("attempt_count", entry.AttemptCount).
			Str("last_error_code", entry.LastErrorCode).
			Msg("Payment retries exhausted")
		if w.metrics != nil {
			w.metrics.RetryExhaustedTotal.Inc()
		}
	}
}

// release puts a claimed entry back to pending without consuming an
// attempt, for faults that happened before the gateway was reached.
func (w *Worker) release(ctx context.Context, entry *retry.Entry, logger zerolog.Logger) {
	entry.Status = retry.StatusPending
	entry.UpdatedAt = w.now()
	if err := w.retryRepo.Update(ctx, entry); err != nil {
		logger.Error().Err(err).Msg("Failed to release retry entry")
	}
}
