package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	outboxApp "github.com/cassiomorais/payment-relay/internal/application/outbox"
	retryApp "github.com/cassiomorais/payment-relay/internal/application/retry"
	"github.com/cassiomorais/payment-relay/internal/bootstrap"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/gateway"
	infraKafka "github.com/cassiomorais/payment-relay/internal/infrastructure/kafka"
	infraRedis "github.com/cassiomorais/payment-relay/internal/infrastructure/redis"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/cassiomorais/payment-relay/internal/repository/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payment-relay-worker", "payment_relay_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	retryRepo := postgres.NewRetryRepository(app.Pool)
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	historyRepo := postgres.NewPaymentHistoryRepository(app.Pool)
	keyRepo := postgres.NewConfirmationKeyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Infrastructure ---
	producer := infraKafka.NewProducer(&app.Config.Kafka)
	defer producer.Close()
	gatewayClient := gateway.NewClient(&app.Config.Gateway, app.Metrics)
	newLock := func(key string, ttl time.Duration) retryApp.Lock {
		return infraRedis.NewDistributedLock(app.Redis, key, ttl)
	}

	// --- Use cases ---
	policy := retry.BackoffPolicy{
		BaseDelay: app.Config.Retry.BaseDelay,
		MaxDelay:  app.Config.Retry.MaxDelay,
	}
	publisher := outboxApp.NewPublisher(outboxRepo, producer, app.Logger, app.Metrics, outboxApp.PublisherConfig{
		BatchSize:    app.Config.Outbox.BatchSize,
		ClaimTimeout: app.Config.Outbox.ClaimTimeout,
	})
	sweeper := outboxApp.NewSweeper(outboxRepo, app.Logger, app.Metrics, app.Config.Outbox.Retention)
	retryWorker := retryApp.NewWorker(
		retryRepo, paymentRepo, historyRepo, keyRepo,
		gatewayClient, txManager, app.Logger, app.Metrics,
		retryApp.WorkerConfig{
			BatchSize:         app.Config.Retry.BatchSize,
			InProgressTimeout: app.Config.Retry.InProgressTimeout,
			Policy:            policy,
		},
	)
	staleDetector := retryApp.NewStaleDetector(
		historyRepo, retryRepo, txManager, newLock, app.Logger, app.Metrics,
		retryApp.StaleDetectorConfig{
			PaymentTimeout:  app.Config.Stale.PaymentTimeout,
			FirstRetryDelay: app.Config.Stale.FirstRetryDelay,
			LockTTL:         app.Config.Stale.LockTTL,
		},
	)

	app.Logger.Info().Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runLoop(gCtx, app, "outbox_publisher", app.Config.Outbox.PollInterval, publisher.Tick)
	})
	g.Go(func() error {
		return runLoop(gCtx, app, "outbox_sweeper", app.Config.Outbox.SweepInterval, sweeper.Tick)
	})
	g.Go(func() error {
		return runLoop(gCtx, app, "retry_worker", app.Config.Retry.PollInterval, retryWorker.Tick)
	})
	g.Go(func() error {
		return runLoop(gCtx, app, "stale_detector", app.Config.Stale.PollInterval, staleDetector.Tick)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// runLoop invokes tick on every interval until the context is
// cancelled. Tick errors are logged and counted, never fatal.
func runLoop(
	ctx context.Context,
	app *bootstrap.App,
	name string,
	interval time.Duration,
	tick func(context.Context) error,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		err := tick(ctx)
		observeTick(app.Metrics, name, start, err)
		if err != nil {
			app.Logger.Error().Err(err).Str("worker", name).Msg("Tick failed")
		}
	}
}

func observeTick(m *observability.Metrics, name string, start time.Time, err error) {
	m.WorkerTickDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		m.WorkerTickErrors.WithLabelValues(name).Inc()
	}
}
