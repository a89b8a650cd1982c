package circulation

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	conflictMaxAttempts  = 5
	conflictBaseDelay    = 10 * time.Millisecond
	conflictJitterFactor = 0.3
)

// retryOnConflict re-runs fn while it fails with ErrConflict, backing off
// exponentially with jitter. Any other error is returned immediately.
func retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < conflictMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := conflictBaseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * conflictJitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil || !errors.Is(lastErr, ErrConflict) {
			return lastErr
		}
	}
	return lastErr
}
