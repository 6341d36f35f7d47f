package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Outbox metrics
	OutboxPublishedTotal *prometheus.CounterVec
	OutboxPublishErrors  *prometheus.CounterVec
	OutboxFailedTotal    prometheus.Counter
	OutboxSweptTotal     prometheus.Counter
	OutboxBatchSize      prometheus.Histogram

	// Retry ledger metrics
	RetryAttemptsTotal  *prometheus.CounterVec
	RetryExhaustedTotal prometheus.Counter
	RetryAbandonedTotal prometheus.Counter
	StalePaymentsTotal  prometheus.Counter

	// Gateway metrics
	GatewayRequestDuration *prometheus.HistogramVec
	GatewayErrors          *prometheus.CounterVec

	// Worker metrics
	WorkerTickDuration *prometheus.HistogramVec
	WorkerTickErrors   *prometheus.CounterVec

	// HTTP metrics (admin surface)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		OutboxPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Outbox entries successfully published, by event type",
			},
			[]string{"event_type"},
		),
		OutboxPublishErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_publish_errors_total",
				Help:      "Failed broker publish attempts, by event type",
			},
			[]string{"event_type"},
		),
		OutboxFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_failed_total",
				Help:      "Outbox entries that exhausted the publish ceiling and need operator attention",
			},
		),
		OutboxSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_swept_total",
				Help:      "Outbox entries deleted by the retention sweeper",
			},
		),
		OutboxBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "outbox_batch_size",
				Help:      "Entries claimed per publisher tick",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		RetryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Payment retry attempts, by outcome",
			},
			[]string{"outcome"},
		),
		RetryExhaustedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_exhausted_total",
				Help:      "Retry entries that hit their ceiling",
			},
		),
		RetryAbandonedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_abandoned_total",
				Help:      "Retry entries abandoned by an operator",
			},
		),
		StalePaymentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_payments_total",
				Help:      "Payment attempts force-aborted by the stale detector",
			},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Billing gateway request duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation", "outcome"},
		),
		GatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_errors_total",
				Help:      "Billing gateway errors, by code",
			},
			[]string{"code"},
		),
		WorkerTickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_tick_duration_seconds",
				Help:      "Periodic worker tick duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"worker"},
		),
		WorkerTickErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_tick_errors_total",
				Help:      "Worker ticks that ended with an error",
			},
			[]string{"worker"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests on the admin surface",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.OutboxPublishedTotal,
		m.OutboxPublishErrors,
		m.OutboxFailedTotal,
		m.OutboxSweptTotal,
		m.OutboxBatchSize,
		m.RetryAttemptsTotal,
		m.RetryExhaustedTotal,
		m.RetryAbandonedTotal,
		m.StalePaymentsTotal,
		m.GatewayRequestDuration,
		m.GatewayErrors,
		m.WorkerTickDuration,
		m.WorkerTickErrors,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
