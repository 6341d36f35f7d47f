package outbox

import (
	"context"
	"time"

	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// PublisherConfig carries the publisher tunables.
type PublisherConfig struct {
	BatchSize    int
	ClaimTimeout time.Duration
}

// Publisher drains the outbox: each tick claims a bounded batch of due
// pending entries (oldest first, so backlog staleness stays bounded)
// and publishes them to the broker, recording the outcome per entry.
type Publisher struct {
	repo      outbox.Repository
	publisher EventPublisher
	logger    zerolog.Logger
	metrics   *observability.Metrics
	cfg       PublisherConfig
	now       func() time.Time
}

func NewPublisher(
	repo outbox.Repository,
	publisher EventPublisher,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	cfg PublisherConfig,
) *Publisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = time.Minute
	}
	return &Publisher{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Tick claims and publishes one batch. Per-entry failures are recorded
// against the entry and never abort the rest of the batch; the only
// error returned is a failure to claim, which means the tick did
// nothing.
func (p *Publisher) Tick(ctx context.Context) error {
	now := p.now()
	entries, err := p.repo.ClaimDue(ctx, now, p.cfg.BatchSize, p.cfg.ClaimTimeout)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.OutboxBatchSize.Observe(float64(len(entries)))
	}
	if len(entries) == 0 {
		return nil
	}

	tracer := otel.Tracer("outbox")
	for _, entry := range entries {
		func() {
			pubCtx, span := tracer.Start(ctx, "outbox.publish")
			span.SetAttributes(
				attribute.String("event_type", entry.EventType),
				attribute.String("aggregate_id", entry.AggregateID.String()),
			)
			defer span.End()

			p.publishOne(pubCtx, entry)
		}()
	}
	return nil
}

func (p *Publisher) publishOne(ctx context.Context, entry *outbox.Entry) {
	now := p.now()
	err := p.publisher.Publish(ctx, entry.EventType, entry.AggregateID.String(), entry.Payload)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("outbox_id", entry.ID.String()).
			Str("aggregate_id", entry.AggregateID.String()).
			Str("event_type", entry.EventType).
			Int("retry_count", entry.RetryCount+1).
			Msg("Failed to publish outbox event")

		entry.RecordPublishFailure(now)
		if p.metrics != nil {
			p.metrics.OutboxPublishErrors.WithLabelValues(entry.EventType).Inc()
			if entry.Status == outbox.StatusFailed {
				p.metrics.OutboxFailedTotal.Inc()
			}
		}
		if entry.Status == outbox.StatusFailed {
			p.logger.Error().
				Str("outbox_id", entry.ID.String()).
				Str("aggregate_id", entry.AggregateID.String()).
				Msg("Outbox entry exceeded publish ceiling, marked failed")
		}
	} else {
		entry.MarkPublished(now)
		if p.metrics != nil {
			p.metrics.OutboxPublishedTotal.WithLabelValues(entry.EventType).Inc()
		}
	}

	if updateErr := p.repo.Update(ctx, entry); updateErr != nil {
		// The entry stays claimed and is reclaimed after the claim
		// timeout; at-least-once delivery may then duplicate it.
		p.logger.Error().
			Err(updateErr).
			Str("outbox_id", entry.ID.String()).
			Msg("Failed to persist outbox entry outcome")
	}
}
