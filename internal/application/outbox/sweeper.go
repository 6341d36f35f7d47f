package outbox

import (
	"context"
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Sweeper purges outbox entries older than the retention window,
// regardless of status. Failed entries are deleted too, so alerting on
// them has to happen before the window elapses.
type Sweeper struct {
	repo      outbox.Repository
	logger    zerolog.Logger
	metrics   *observability.Metrics
	retention time.Duration
	now       func() time.Time
}

func NewSweeper(repo outbox.Repository, logger zerolog.Logger, metrics *observability.Metrics, retention time.Duration) *Sweeper {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Sweeper{
		repo:      repo,
		logger:    logger,
		metrics:   metrics,
		retention: retention,
		now:       time.Now,
	}
}

func (s *Sweeper) Tick(ctx context.Context) error {
	threshold := s.now().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		return err
	}
	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.OutboxSweptTotal.Add(float64(deleted))
		}
		s.logger.Info().
			Int64("deleted", deleted).
			Time("threshold", threshold).
			Msg("Outbox retention sweep completed")
	}
	return nil
}
