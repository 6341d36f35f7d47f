package retry

import (
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/payment-relay/internal/domain/errors"
	"github.com/google/uuid"
)

// Entry is a durable record of a failed payment-gateway attempt and
// the schedule on which it will be retried. At most one non-terminal
// entry may exist per payment at a time.
type Entry struct {
	ID               uuid.UUID
	PaymentID        uuid.UUID
	FailedHistoryID  uuid.UUID
	Status           Status
	Strategy         Strategy
	AttemptCount     int
	MaxRetryCount    int
	NextRetryAt      *time.Time
	LastErrorMessage string
	LastErrorCode    string
	AbandonReason    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusExhausted  Status = "exhausted"
	StatusAbandoned  Status = "abandoned"
)

type Strategy string

const (
	StrategyLinearBackoff      Strategy = "linear_backoff"
	StrategyExponentialBackoff Strategy = "exponential_backoff"
)

// Retry ceilings by error class.
const (
	maxRetriesTransient = 5
	maxRetriesDefault   = 3
	maxRetriesDecline   = 0

	// StaleMaxRetryCount is the conservative ceiling used when an
	// entry is seeded by the stale-payment detector rather than by a
	// concrete gateway error.
	StaleMaxRetryCount = 10
)

// StaleErrorCode marks entries created by the stale-payment detector.
const StaleErrorCode = "STALE_PAYMENT_TIMEOUT"

// NewEntry creates a retry entry for a failed gateway attempt. The
// strategy and the retry ceiling are derived from the gateway error
// code; hard declines get a zero ceiling and the entry is exhausted
// on arrival, signalling "do not retry".
func NewEntry(paymentID, failedHistoryID uuid.UUID, errorMessage, errorCode string, now time.Time, policy BackoffPolicy) *Entry {
	strategy, maxRetries := Classify(errorCode)

	e := &Entry{
		ID:               uuid.New(),
		PaymentID:        paymentID,
		FailedHistoryID:  failedHistoryID,
		Strategy:         strategy,
		AttemptCount:     0,
		MaxRetryCount:    maxRetries,
		LastErrorMessage: errorMessage,
		LastErrorCode:    errorCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if maxRetries == 0 {
		e.Status = StatusExhausted
		return e
	}

	e.Status = StatusPending
	next := now.Add(policy.Delay(strategy, 1))
	e.NextRetryAt = &next
	return e
}

// NewStaleEntry creates a retry entry for a payment attempt that
// stalled in an intermediate state. The detector has no gateway error
// code to classify, so it uses exponential backoff with a high ceiling
// and a fixed initial delay.
func NewStaleEntry(paymentID, failedHistoryID uuid.UUID, now time.Time, initialDelay time.Duration) *Entry {
	next := now.Add(initialDelay)
	return &Entry{
		ID:               uuid.New(),
		PaymentID:        paymentID,
		FailedHistoryID:  failedHistoryID,
		Status:           StatusPending,
		Strategy:         StrategyExponentialBackoff,
		AttemptCount:     0,
		MaxRetryCount:    StaleMaxRetryCount,
		NextRetryAt:      &next,
		LastErrorMessage: "payment stuck in intermediate state past timeout",
		LastErrorCode:    StaleErrorCode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Classify maps a gateway error code to a retry strategy and ceiling.
// Network and timeout failures are worth patient exponential retries;
// hard declines are not worth any.
func Classify(errorCode string) (Strategy, int) {
	code := strings.ToUpper(errorCode)
	if strings.Contains(code, "CARD_DECLINED") {
		return StrategyLinearBackoff, maxRetriesDecline
	}
	if strings.Contains(code, "TIMEOUT") || strings.Contains(code, "NETWORK") {
		return StrategyExponentialBackoff, maxRetriesTransient
	}
	return StrategyLinearBackoff, maxRetriesDefault
}

// IsTerminal reports whether the entry can no longer change state.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusSucceeded || e.Status == StatusExhausted || e.Status == StatusAbandoned
}

// IsDue reports whether the entry is eligible for a retry attempt.
func (e *Entry) IsDue(now time.Time) bool {
	return e.Status == StatusPending && e.NextRetryAt != nil && !e.NextRetryAt.After(now)
}

// MarkInProgress transitions a pending entry to in-progress.
func (e *Entry) MarkInProgress(now time.Time) error {
	if e.IsTerminal() {
		return domainErrors.ErrRetryTerminal
	}
	if e.Status != StatusPending {
		return domainErrors.ErrInvalidStateTransition
	}
	e.Status = StatusInProgress
	e.UpdatedAt = now
	return nil
}

// MarkSucceeded transitions an in-progress entry to succeeded.
func (e *Entry) MarkSucceeded(now time.Time) error {
	if e.IsTerminal() {
		return domainErrors.ErrRetryTerminal
	}
	e.Status = StatusSucceeded
	e.NextRetryAt = nil
	e.UpdatedAt = now
	return nil
}

// MarkAbandoned terminates the entry manually. Abandoned is terminal.
func (e *Entry) MarkAbandoned(reason string, now time.Time) error {
	if e.IsTerminal() {
		return domainErrors.ErrRetryTerminal
	}
	e.Status = StatusAbandoned
	e.AbandonReason = reason
	e.NextRetryAt = nil
	e.UpdatedAt = now
	return nil
}

// RecordFailedAttempt counts a failed gateway attempt. While the
// ceiling is not reached the entry is rescheduled according to its
// strategy; once attemptCount reaches maxRetryCount the entry becomes
// exhausted and nextRetryAt is cleared.
func (e *Entry) RecordFailedAttempt(errorMessage, errorCode string, now time.Time, policy BackoffPolicy) error {
	if e.IsTerminal() {
		return domainErrors.ErrRetryTerminal
	}
	e.AttemptCount++
	e.LastErrorMessage = errorMessage
	e.LastErrorCode = errorCode
	e.UpdatedAt = now

	if e.AttemptCount >= e.MaxRetryCount {
		e.Status = StatusExhausted
		e.NextRetryAt = nil
		return nil
	}

	e.Status = StatusPending
	next := now.Add(policy.Delay(e.Strategy, e.AttemptCount))
	e.NextRetryAt = &next
	return nil
}
