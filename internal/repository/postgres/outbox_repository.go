package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status,
	retry_count, max_attempts, next_attempt_at, claimed_at, created_at, published_at`

func (r *OutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, max_attempts, next_attempt_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, []byte(entry.Payload),
		string(entry.Status), entry.RetryCount, entry.MaxAttempts, entry.NextAttemptAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ClaimDue flips due pending rows to claimed inside a single statement
// so concurrent publisher instances never pick up the same entry. Rows
// left claimed by a crashed instance become eligible again after
// staleClaim.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, staleClaim time.Duration) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`UPDATE outbox SET status = 'claimed', claimed_at = $1
		 WHERE id IN (
		     SELECT id FROM outbox
		     WHERE (status = 'pending' AND next_attempt_at <= $1)
		        OR (status = 'claimed' AND claimed_at <= $2)
		     ORDER BY created_at ASC
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+outboxColumns,
		now, now.Add(-staleClaim), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()
	return scanOutboxEntries(rows)
}

func (r *OutboxRepository) Update(ctx context.Context, entry *outbox.Entry) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = $1, retry_count = $2, next_attempt_at = $3, claimed_at = $4, published_at = $5
		 WHERE id = $6`,
		string(entry.Status), entry.RetryCount, entry.NextAttemptAt, entry.ClaimedAt, entry.PublishedAt, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update outbox entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOutboxEntryNotFound
	}
	return nil
}

func (r *OutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Entry, error) {
	row := r.db(ctx).QueryRow(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE id = $1`, id,
	)
	entry, err := scanOutboxEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrOutboxEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox entry: %w", err)
	}
	return entry, nil
}

func (r *OutboxRepository) ListByStatus(ctx context.Context, status outbox.Status, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outbox entries: %w", err)
	}
	defer rows.Close()
	return scanOutboxEntries(rows)
}

func (r *OutboxRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM outbox WHERE created_at < $1`, threshold,
	)
	if err != nil {
		return 0, fmt.Errorf("delete outbox entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOutboxEntries(rows pgx.Rows) ([]*outbox.Entry, error) {
	var entries []*outbox.Entry
	for rows.Next() {
		entry, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanOutboxEntry(row pgx.Row) (*outbox.Entry, error) {
	e := &outbox.Entry{}
	var payload []byte
	var status string
	if err := row.Scan(
		&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &status,
		&e.RetryCount, &e.MaxAttempts, &e.NextAttemptAt, &e.ClaimedAt, &e.CreatedAt, &e.PublishedAt,
	); err != nil {
		return nil, err
	}
	e.Payload = payload
	e.Status = outbox.Status(status)
	return e, nil
}
