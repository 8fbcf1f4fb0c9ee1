package resolver

import (
	"context"
	"time"
)

// RetryPolicy bounds how many times the role read is attempted and how long
// to wait between attempts. It is deliberately tiny: one transient backend
// failure is recovered automatically, a second one degrades the resolution
// instead of retrying forever.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is one automatic retry after a short fixed delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Delay: 200 * time.Millisecond}

// Do runs fn up to MaxAttempts times, sleeping Delay between attempts. It
// returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is done during a delay.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}
