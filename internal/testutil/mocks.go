package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/cassiomorais/payment-relay/internal/domain/outbox"
	"github.com/cassiomorais/payment-relay/internal/domain/payment"
	"github.com/cassiomorais/payment-relay/internal/domain/retry"
	"github.com/cassiomorais/payment-relay/internal/infrastructure/gateway"
	"github.com/google/uuid"
)

// --- Outbox Repository Mock ---

// MockOutboxRepository is an in-memory implementation of
// outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*outbox.Entry

	InsertFunc   func(ctx context.Context, entry *outbox.Entry) error
	ClaimDueFunc func(ctx context.Context, now time.Time, limit int, staleClaim time.Duration) ([]*outbox.Entry, error)
	UpdateFunc   func(ctx context.Context, entry *outbox.Entry) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{entries: make(map[uuid.UUID]*outbox.Entry)}
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return nil
}

func (m *MockOutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, staleClaim time.Duration) ([]*outbox.Entry, error) {
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, now, limit, staleClaim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*outbox.Entry
	for _, e := range m.entries {
		pendingDue := e.Status == outbox.StatusPending && !e.NextAttemptAt.After(now)
		staleClaimed := e.Status == outbox.StatusClaimed && e.ClaimedAt != nil && !e.ClaimedAt.After(now.Add(-staleClaim))
		if pendingDue || staleClaimed {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		e.Status = outbox.StatusClaimed
		claimedAt := now
		e.ClaimedAt = &claimedAt
	}
	return due, nil
}

func (m *MockOutboxRepository) Update(ctx context.Context, entry *outbox.Entry) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; !ok {
		return domainErrors.ErrOutboxEntryNotFound
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *MockOutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domainErrors.ErrOutboxEntryNotFound
	}
	return e, nil
}

func (m *MockOutboxRepository) ListByStatus(ctx context.Context, status outbox.Status, limit int) ([]*outbox.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == status {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockOutboxRepository) DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, e := range m.entries {
		if e.CreatedAt.Before(threshold) {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- Retry Repository Mock ---

// MockRetryRepository is an in-memory implementation of
// retry.Repository. Create enforces the one-open-entry rule the same
// way the database partial unique index does.
type MockRetryRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*retry.Entry

	CreateFunc   func(ctx context.Context, entry *retry.Entry) error
	ClaimDueFunc func(ctx context.Context, now time.Time, limit int, staleInProgress time.Duration) ([]*retry.Entry, error)
	UpdateFunc   func(ctx context.Context, entry *retry.Entry) error
}

func NewMockRetryRepository() *MockRetryRepository {
	return &MockRetryRepository{entries: make(map[uuid.UUID]*retry.Entry)}
}

func (m *MockRetryRepository) Create(ctx context.Context, entry *retry.Entry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PaymentID == entry.PaymentID && !e.IsTerminal() {
			return domainErrors.ErrRetryConflict
		}
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *MockRetryRepository) GetByID(ctx context.Context, id uuid.UUID) (*retry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domainErrors.ErrRetryEntryNotFound
	}
	return e, nil
}

func (m *MockRetryRepository) FindNonTerminalByPayment(ctx context.Context, paymentID uuid.UUID) (*retry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.PaymentID == paymentID && !e.IsTerminal() {
			return e, nil
		}
	}
	return nil, nil
}

func (m *MockRetryRepository) ClaimDue(ctx context.Context, now time.Time, limit int, staleInProgress time.Duration) ([]*retry.Entry, error) {
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, now, limit, staleInProgress)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*retry.Entry
	for _, e := range m.entries {
		pendingDue := e.IsDue(now)
		staleClaimed := e.Status == retry.StatusInProgress && !e.UpdatedAt.After(now.Add(-staleInProgress))
		if pendingDue || staleClaimed {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		ni, nj := due[i].NextRetryAt, due[j].NextRetryAt
		switch {
		case ni == nil:
			return false
		case nj == nil:
			return true
		default:
			return ni.Before(*nj)
		}
	})
	if len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		e.Status = retry.StatusInProgress
		e.UpdatedAt = now
	}
	return due, nil
}

func (m *MockRetryRepository) Update(ctx context.Context, entry *retry.Entry) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.ID]; !ok {
		return domainErrors.ErrRetryEntryNotFound
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *MockRetryRepository) ListByStatus(ctx context.Context, status retry.Status, limit int) ([]*retry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*retry.Entry
	for _, e := range m.entries {
		if e.Status == status {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- Payment Repository Mocks ---

// MockPaymentRepository is an in-memory implementation of
// payment.Repository.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment

	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[uuid.UUID]*payment.Payment)}
}

func (m *MockPaymentRepository) Put(p *payment.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p, nil
}

// MockHistoryRepository is an in-memory implementation of
// payment.HistoryRepository.
type MockHistoryRepository struct {
	mu        sync.Mutex
	histories []*payment.History

	AppendFunc    func(ctx context.Context, history *payment.History) error
	FindStaleFunc func(ctx context.Context, threshold time.Time) ([]*payment.History, error)
}

func NewMockHistoryRepository() *MockHistoryRepository {
	return &MockHistoryRepository{}
}

func (m *MockHistoryRepository) Append(ctx context.Context, history *payment.History) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, history)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories = append(m.histories, history)
	return nil
}

func (m *MockHistoryRepository) FindStale(ctx context.Context, threshold time.Time) ([]*payment.History, error) {
	if m.FindStaleFunc != nil {
		return m.FindStaleFunc(ctx, threshold)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[uuid.UUID]*payment.History)
	for _, h := range m.histories {
		cur, ok := latest[h.PaymentID]
		if !ok || h.CreatedAt.After(cur.CreatedAt) {
			latest[h.PaymentID] = h
		}
	}
	var stale []*payment.History
	for _, h := range latest {
		if h.Status.IsIntermediate() && h.CreatedAt.Before(threshold) {
			stale = append(stale, h)
		}
	}
	return stale, nil
}

// Appended returns a copy of all appended history rows.
func (m *MockHistoryRepository) Appended() []*payment.History {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*payment.History, len(m.histories))
	copy(out, m.histories)
	return out
}

// MockConfirmationKeyRepository is an in-memory implementation of
// payment.ConfirmationKeyRepository.
type MockConfirmationKeyRepository struct {
	mu   sync.Mutex
	keys []*payment.ConfirmationKey

	InsertFunc func(ctx context.Context, key *payment.ConfirmationKey) error
}

func NewMockConfirmationKeyRepository() *MockConfirmationKeyRepository {
	return &MockConfirmationKeyRepository{}
}

func (m *MockConfirmationKeyRepository) Insert(ctx context.Context, key *payment.ConfirmationKey) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *MockConfirmationKeyRepository) Keys() []*payment.ConfirmationKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*payment.ConfirmationKey, len(m.keys))
	copy(out, m.keys)
	return out
}

// --- Event Publisher Mock ---

// PublishedMessage records one call to Publish.
type PublishedMessage struct {
	Topic   string
	Key     string
	Payload []byte
}

// MockEventPublisher records published messages and can be configured
// to fail per topic or globally.
type MockEventPublisher struct {
	mu        sync.Mutex
	published []PublishedMessage

	PublishFunc func(ctx context.Context, topic, key string, payload []byte) error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, topic, key, payload); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, PublishedMessage{Topic: topic, Key: key, Payload: payload})
	return nil
}

func (m *MockEventPublisher) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

// --- Gateway Mock ---

// MockGateway is a configurable billing gateway.
type MockGateway struct {
	mu    sync.Mutex
	calls []gateway.ChargeRequest

	ChargeFunc func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.ChargeFunc != nil {
		return m.ChargeFunc(ctx, req)
	}
	return &gateway.ChargeResult{PaymentKey: "test-payment-key"}, nil
}

func (m *MockGateway) Calls() []gateway.ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gateway.ChargeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- Transaction Manager Mock ---

// NoopTxManager runs the function without a real transaction.
type NoopTxManager struct{}

func (NoopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Lock Mock ---

// FakeLock is a lock that always grants acquisition unless configured
// otherwise.
type FakeLock struct {
	Denied      bool
	AcquireErr  error
	ReleaseErr  error
	AcquireHits int
	ReleaseHits int
}

func (l *FakeLock) Acquire(ctx context.Context) (bool, error) {
	l.AcquireHits++
	if l.AcquireErr != nil {
		return false, l.AcquireErr
	}
	return !l.Denied, nil
}

func (l *FakeLock) Release(ctx context.Context) error {
	l.ReleaseHits++
	return l.ReleaseErr
}
