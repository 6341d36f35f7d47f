package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is a transactional outbox record. It is written in the same
// database transaction as the state change it announces and published
// to the broker asynchronously by the publisher worker.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       json.RawMessage
	Status        Status
	RetryCount    int
	MaxAttempts   int
	NextAttemptAt time.Time
	ClaimedAt     *time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// DefaultMaxAttempts is the publish ceiling after which an entry is
// marked failed and left for operator intervention.
const DefaultMaxAttempts = 10

// maxPublishBackoff caps the delay between publish attempts.
const maxPublishBackoff = time.Hour

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload json.RawMessage) *Entry {
	now := time.Now()
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// IsTerminal reports whether the entry can no longer change state.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusPublished || e.Status == StatusFailed
}

// MarkPublished transitions a claimed or pending entry to published.
// Published is terminal.
func (e *Entry) MarkPublished(now time.Time) {
	if e.IsTerminal() {
		return
	}
	e.Status = StatusPublished
	e.PublishedAt = &now
}

// RecordPublishFailure increments the attempt counter and either
// reschedules the entry with exponential backoff or, once the ceiling
// is reached, marks it failed. Failed is terminal.
func (e *Entry) RecordPublishFailure(now time.Time) {
	if e.IsTerminal() {
		return
	}
	e.RetryCount++
	if e.RetryCount >= e.MaxAttempts {
		e.Status = StatusFailed
		e.ClaimedAt = nil
		return
	}
	e.Status = StatusPending
	e.ClaimedAt = nil
	e.NextAttemptAt = now.Add(PublishBackoff(e.RetryCount))
}

// PublishBackoff returns the delay before the next publish attempt:
// 2^retryCount seconds, capped at one hour.
func PublishBackoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return time.Second
	}
	if retryCount > 12 {
		return maxPublishBackoff
	}
	d := time.Duration(1<<uint(retryCount)) * time.Second
	if d > maxPublishBackoff {
		return maxPublishBackoff
	}
	return d
}
