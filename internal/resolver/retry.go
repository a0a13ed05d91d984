package resolver

import (
	"context"
	"time"

	"pypitypes/internal/pypi"
)

// RetryPolicy bounds how often a failed index call is reattempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; each further retry
	// doubles it, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy matches the index's tolerance for polite bulk clients.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// SleepFunc waits for d or until ctx is done. Injected so backoff tests need
// no real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withRetry runs fn, reattempting transient failures under the resolver's
// policy. Non-transient errors and context cancellation return immediately;
// the last transient error is returned once attempts are exhausted.
func (r *Resolver) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil || !pypi.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == r.retry.MaxAttempts-1 {
			break
		}
		d := r.retry.delay(attempt)
		r.log.Debug().Str("op", op).Int("attempt", attempt+1).Dur("backoff", d).
			Err(lastErr).Msg("transient index failure, backing off")
		if err := r.sleep(ctx, d); err != nil {
			return err
		}
	}
	return lastErr
}
