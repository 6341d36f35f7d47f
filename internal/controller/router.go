package controller

import (
	"time"

	retryapp "github.com/cassiomorais/payment-relay/internal/application/retry"
	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/config"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payment-relay/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool         *pgxpool.Pool
	RedisClient  *redis.Client
	OutboxRepo   outbox.Repository
	RetryService *retryapp.Service
	Metrics      *observability.Metrics
	CORSConfig   config.CORSConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	retryH := NewRetryController(deps.RetryService)
	outboxH := NewOutboxController(deps.OutboxRepo)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Retry ledger
		r.Get("/retries", retryH.ListRetries)
		r.Get("/retries/{id}", retryH.GetRetry)
		r.Post("/retries/{id}/abandon", retryH.AbandonRetry)

		// Outbox
		r.Get("/outbox", outboxH.ListEntries)
		r.Get("/outbox/{id}", outboxH.GetEntry)
	})

	return r
}
