package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p := &payment.Payment{}
	var method, status string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, title, amount_cents, method, idempotency_key, status, created_at, updated_at
		 FROM payments WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.AmountCents, &method, &p.IdempotencyKey, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Method = payment.Method(method)
	p.Status = payment.Status(status)
	return p, nil
}

type PaymentHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentHistoryRepository(pool *pgxpool.Pool) *PaymentHistoryRepository {
	return &PaymentHistoryRepository{pool: pool}
}

func (r *PaymentHistoryRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *PaymentHistoryRepository) Append(ctx context.Context, h *payment.History) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_histories (id, payment_id, status, created_at)
		 VALUES ($1, $2, $3, $4)`,
		h.ID, h.PaymentID, string(h.Status), h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment history: %w", err)
	}
	return nil
}

// FindStale selects the latest history row per payment and keeps the
// ones parked in an intermediate status since before the threshold.
func (r *PaymentHistoryRepository) FindStale(ctx context.Context, threshold time.Time) ([]*payment.History, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, payment_id, status, created_at FROM (
		     SELECT DISTINCT ON (payment_id) id, payment_id, status, created_at
		     FROM payment_histories
		     ORDER BY payment_id, created_at DESC
		 ) latest
		 WHERE status IN ('ready', 'in_progress') AND created_at < $1`,
		threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("find stale payments: %w", err)
	}
	defer rows.Close()

	var stale []*payment.History
	for rows.Next() {
		h := &payment.History{}
		var status string
		if err := rows.Scan(&h.ID, &h.PaymentID, &status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment history: %w", err)
		}
		h.Status = payment.HistoryStatus(status)
		stale = append(stale, h)
	}
	return stale, rows.Err()
}

type ConfirmationKeyRepository struct {
	pool *pgxpool.Pool
}

func NewConfirmationKeyRepository(pool *pgxpool.Pool) *ConfirmationKeyRepository {
	return &ConfirmationKeyRepository{pool: pool}
}

func (r *ConfirmationKeyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *ConfirmationKeyRepository) Insert(ctx context.Context, key *payment.ConfirmationKey) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_confirmation_keys (id, payment_id, confirmation_key, confirmed_at)
		 VALUES ($1, $2, $3, $4)`,
		key.ID, key.PaymentID, key.Key, key.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("insert confirmation key: %w", err)
	}
	return nil
}
