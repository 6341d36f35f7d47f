package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	retryApp "github.com/cassiomorais/payment-relay/internal/application/retry"
	"github.com/cassiomorais/payment-relay/internal/bootstrap"
	"github.com/cassiomorais/payment-relay/internal/controller"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "payment-relay-admin", "payment_relay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	retryRepo := postgres.NewRetryRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Application services ---
	policy := retry.BackoffPolicy{
		BaseDelay: app.Config.Retry.BaseDelay,
		MaxDelay:  app.Config.Retry.MaxDelay,
	}
	retryService := retryApp.NewService(retryRepo, txManager, app.Logger, app.Metrics, policy)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:         app.Pool,
		RedisClient:  app.Redis,
		OutboxRepo:   outboxRepo,
		RetryService: retryService,
		Metrics:      app.Metrics,
		CORSConfig:   app.Config.Admin.CORS,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Admin.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Admin.ReadTimeout,
		WriteTimeout: app.Config.Admin.WriteTimeout,
		IdleTimeout:  app.Config.Admin.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting admin server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Admin.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
