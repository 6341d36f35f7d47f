package retry

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/payment"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// StaleDetectorConfig carries the stale-payment detector tunables.
type StaleDetectorConfig struct {
	PaymentTimeout  time.Duration
	FirstRetryDelay time.Duration
	LockTTL         time.Duration
}

// StaleDetector finds payments stuck in an intermediate status longer
// than the timeout, force-aborts the stuck attempt and seeds a retry
// entry for it. A per-payment distributed lock keeps concurrent
// instances from aborting the same attempt twice.
type StaleDetector struct {
	historyRepo payment.HistoryRepository
	retryRepo   retry.Repository
	txManager   TransactionManager
	newLock     LockFactory
	logger      zerolog.Logger
	metrics     *observability.Metrics
	cfg         StaleDetectorConfig
	now         func() time.Time
}

func NewStaleDetector(
	historyRepo payment.HistoryRepository,
	retryRepo retry.Repository,
	txManager TransactionManager,
	newLock LockFactory,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	cfg StaleDetectorConfig,
) *StaleDetector {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 30 * time.Minute
	}
	if cfg.FirstRetryDelay <= 0 {
		cfg.FirstRetryDelay = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &StaleDetector{
		historyRepo: historyRepo,
		retryRepo:   retryRepo,
		txManager:   txManager,
		newLock:     newLock,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Tick scans for stale payments and seeds a retry entry for each.
func (d *StaleDetector) Tick(ctx context.Context) error {
	now := d.now()
	threshold := now.Add(-d.cfg.PaymentTimeout)

	stale, err := d.historyRepo.FindStale(ctx, threshold)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	d.logger.Warn().Int("count", len(stale)).Msg("Stale payments detected")

	for _, history := range stale {
		d.handleStale(ctx, history, now)
	}
	return nil
}

func (d *StaleDetector) handleStale(ctx context.Context, history *payment.History, now time.Time) {
	logger := d.logger.With().
		Str("payment_id", history.PaymentID.String()).
		Str("history_id", history.ID.String()).
		Str("status", string(history.Status)).
		Logger()

	lock := d.newLock("stale-payment:"+history.PaymentID.String(), d.cfg.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to acquire stale-payment lock")
		return
	}
	if !acquired {
		// Another instance is already handling this payment.
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to release stale-payment lock")
		}
	}()

	err = d.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := d.historyRepo.Append(txCtx, payment.NewHistory(history.PaymentID, payment.HistoryAborted)); err != nil {
			return err
		}
		entry := retry.NewStaleEntry(history.PaymentID, history.ID, now, d.cfg.FirstRetryDelay)
		return d.retryRepo.Create(txCtx, entry)
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrRetryConflict) {
			// A retry entry is already open for this payment.
			return
		}
		logger.Error().Err(err).Msg("Failed to abort stale payment")
		return
	}

	logger.Warn().
		Dur("stuck_for", now.Sub(history.CreatedAt)).
		Msg("Stale payment aborted and scheduled for retry")
	if d.metrics != nil {
		d.metrics.StalePaymentsTotal.Inc()
	}
}
