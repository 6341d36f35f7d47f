package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RetryRepository struct {
	pool *pgxpool.Pool
}

func NewRetryRepository(pool *pgxpool.Pool) *RetryRepository {
	return &RetryRepository{pool: pool}
}

func (r *RetryRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const retryColumns = `id, payment_id, failed_history_id, status, strategy, attempt_count,
	max_retry_count, next_retry_at, last_error_message, last_error_code, abandon_reason,
	created_at, updated_at`

func (r *RetryRepository) Create(ctx context.Context, entry *retry.Entry) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_retries (id, payment_id, failed_history_id, status, strategy, attempt_count, max_retry_count, next_retry_at, last_error_message, last_error_code, abandon_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID, entry.PaymentID, entry.FailedHistoryID, string(entry.Status), string(entry.Strategy),
		entry.AttemptCount, entry.MaxRetryCount, entry.NextRetryAt,
		entry.LastErrorMessage, entry.LastErrorCode, entry.AbandonReason,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on (payment_id) WHERE status IN
		// ('pending','in_progress') backs the one-open-entry invariant
		// under concurrent creators.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domainErrors.ErrRetryConflict
		}
		return fmt.Errorf("insert retry entry: %w", err)
	}
	return nil
}

func (r *RetryRepository) GetByID(ctx context.Context, id uuid.UUID) (*retry.Entry, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+retryColumns+` FROM payment_retries WHERE id = $1`, id,
	)
	entry, err := scanRetryEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrRetryEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get retry entry: %w", err)
	}
	return entry, nil
}

func (r *RetryRepository) FindNonTerminalByPayment(ctx context.Context, paymentID uuid.UUID) (*retry.Entry, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+retryColumns+` FROM payment_retries
		 WHERE payment_id = $1 AND status IN ('pending', 'in_progress')
		 LIMIT 1`, paymentID,
	)
	entry, err := scanRetryEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find non-terminal retry entry: %w", err)
	}
	return entry, nil
}

// ClaimDue moves due pending rows to in_progress in one statement so
// concurrent worker instances never retry the same payment twice.
// Rows left in_progress by a crashed worker become eligible again
// after staleInProgress.
func (r *RetryRepository) ClaimDue(ctx context.Context, now time.Time, limit int, staleInProgress time.Duration) ([]*retry.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`UPDATE payment_retries SET status = 'in_progress', updated_at = $1
		 WHERE id IN (
		     SELECT id FROM payment_retries
		     WHERE (status = 'pending' AND next_retry_at <= $1)
		        OR (status = 'in_progress' AND updated_at <= $2)
		     ORDER BY next_retry_at ASC
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+retryColumns,
		now, now.Add(-staleInProgress), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim retry entries: %w", err)
	}
	defer rows.Close()
	return scanRetryEntries(rows)
}

func (r *RetryRepository) Update(ctx context.Context, entry *retry.Entry) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_retries SET status = $1, attempt_count = $2, next_retry_at = $3,
		        last_error_message = $4, last_error_code = $5, abandon_reason = $6, updated_at = $7
		 WHERE id = $8`,
		string(entry.Status), entry.AttemptCount, entry.NextRetryAt,
		entry.LastErrorMessage, entry.LastErrorCode, entry.AbandonReason, entry.UpdatedAt,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update retry entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrRetryEntryNotFound
	}
	return nil
}

func (r *RetryRepository) ListByStatus(ctx context.Context, status retry.Status, limit int) ([]*retry.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+retryColumns+` FROM payment_retries WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list retry entries: %w", err)
	}
	defer rows.Close()
	return scanRetryEntries(rows)
}

func scanRetryEntries(rows pgx.Rows) ([]*retry.Entry, error) {
	var entries []*retry.Entry
	for rows.Next() {
		entry, err := scanRetryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retry entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanRetryEntry(row pgx.Row) (*retry.Entry, error) {
	e := &retry.Entry{}
	var status, strategy string
	if err := row.Scan(
		&e.ID, &e.PaymentID, &e.FailedHistoryID, &status, &strategy, &e.AttemptCount,
		&e.MaxRetryCount, &e.NextRetryAt, &e.LastErrorMessage, &e.LastErrorCode, &e.AbandonReason,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = retry.Status(status)
	e.Strategy = retry.Strategy(strategy)
	return e, nil
}
