// Package resilience holds the call-shaping helpers every outbound catalog
// request goes through: a minimum-interval rate limiter and a bounded retry.
package resilience

import (
	"context"
	"sync"
	"time"
)

// Limiter is a minimum-interval gate: each call to Wait returns no sooner than
// interval after the previous call returned. It is not a token bucket, there
// is no burst allowance.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewLimiter creates a limiter. A non-positive interval disables waiting.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Interval returns the configured minimum spacing between calls.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the interval since the previous start has elapsed, then
// records the current time as the new start. The lock is held while sleeping
// so concurrent callers are serialized through the gate.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.interval > 0 && !l.last.IsZero() {
		if wait := l.interval - time.Since(l.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.last = time.Now()
	return nil
}

// Execute runs fn once the limiter lets it through and returns fn's result
// unchanged. A nil limiter runs fn immediately.
func Execute[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	if l != nil {
		if err := l.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	return fn(ctx)
}
