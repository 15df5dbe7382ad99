package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock stayed busy through the whole
// retry budget.
var ErrNotAcquired = errors.New("lock not acquired")

// Manager serializes a critical section across processes under a named
// advisory lock with a lease. The engine uses it to make the daily-limit
// read-check-persist sequence atomic per sender.
type Manager interface {
	// WithLock acquires the named lock, runs fn, and releases on every exit
	// path including panics. Acquisition retries with capped exponential
	// backoff; exhaustion returns an error matching ErrNotAcquired.
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// retryDelay is the backoff before the next acquisition attempt: 50ms
// doubling per attempt, capped at 500ms.
func retryDelay(attempt int) time.Duration {
	delay := 50 * time.Millisecond << uint(attempt)
	if delay > 500*time.Millisecond {
		return 500 * time.Millisecond
	}
	return delay
}
