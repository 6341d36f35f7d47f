package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cassiomorais/payment-relay/internal/infrastructure/config"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Error is a coded gateway failure carried as data. The retry ledger
// classifies it by Code; it is never used to drive control flow by
// panicking or unwinding.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// Synthetic codes for failures that never reached the gateway.
const (
	CodeNetworkError = "NETWORK_ERROR"
	CodeTimeout      = "TIMEOUT"
)

type ChargeRequest struct {
	Amount    int64
	OrderID   string
	OrderName string
}

type ChargeResult struct {
	PaymentKey string
}

// Client calls the billing gateway's recurring-payment endpoint. Calls
// run behind a circuit breaker so a down gateway sheds load fast
// instead of burning a full timeout per retry entry.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*ChargeResult]
	metrics    *observability.Metrics
	cfg        *config.GatewayConfig
}

func NewClient(cfg *config.GatewayConfig, metrics *observability.Metrics) *Client {
	breaker := gobreaker.NewCircuitBreaker[*ChargeResult](gobreaker.Settings{
		Name:        "billing-gateway",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// Charge re-invokes the billing endpoint for a payment. On success the
// returned payment key is the gateway's confirmation. On failure the
// returned error is a *Error whose code feeds retry classification.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	tracer := otel.Tracer("gateway")
	ctx, span := tracer.Start(ctx, "gateway.charge", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("order_id", req.OrderID))
	defer span.End()

	start := time.Now()
	result, err := c.breaker.Execute(func() (*ChargeResult, error) {
		return c.charge(ctx, req)
	})
	c.observe("charge", start, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Code: CodeNetworkError, Message: "circuit breaker open: " + err.Error()}
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(map[string]any{
		"amount":      req.Amount,
		"orderId":     req.OrderID,
		"orderName":   req.OrderName,
		"customerKey": c.cfg.CustomerKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/billing/%s", c.cfg.BaseURL, c.cfg.BillingKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.SecretKey, "")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Code: CodeTimeout, Message: err.Error()}
		}
		return nil, &Error{Code: CodeNetworkError, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var payload struct {
		PaymentKey string `json:"paymentKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Code: "INVALID_RESPONSE", Message: err.Error(), Status: resp.StatusCode}
	}
	if payload.PaymentKey == "" {
		return nil, &Error{Code: "INVALID_RESPONSE", Message: "missing paymentKey in response", Status: resp.StatusCode}
	}
	return &ChargeResult{PaymentKey: payload.PaymentKey}, nil
}

func decodeError(resp *http.Response) *Error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Code == "" {
		return &Error{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: resp.Status,
			Status:  resp.StatusCode,
		}
	}
	return &Error{Code: payload.Code, Message: payload.Message, Status: resp.StatusCode}
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		var gwErr *Error
		if errors.As(err, &gwErr) {
			c.metrics.GatewayErrors.WithLabelValues(gwErr.Code).Inc()
		} else {
			c.metrics.GatewayErrors.WithLabelValues("internal").Inc()
		}
	}
	c.metrics.GatewayRequestDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
