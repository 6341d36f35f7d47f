package retry

import "time"

// BackoffPolicy maps an attempt count to the wait before the next
// retry. Linear grows as baseDelay*attempt, exponential as
// baseDelay*2^attempt; both are capped at MaxDelay.
type BackoffPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay: 1 * time.Minute,
		MaxDelay:  1 * time.Hour,
	}
}

func (p BackoffPolicy) Delay(strategy Strategy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch strategy {
	case StrategyExponentialBackoff:
		if attempt > 30 {
			return p.MaxDelay
		}
		d = p.BaseDelay * time.Duration(1<<uint(attempt))
	default:
		d = p.BaseDelay * time.Duration(attempt)
	}

	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}
