package resilience

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds how often a failing call is repeated.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so a value
	// of 3 allows up to 4 attempts in total.
	MaxRetries uint64
	// Delay is the pause before the first retry.
	Delay time.Duration
	// Linear grows the pause with the retry number (Delay, 2*Delay, ...)
	// instead of keeping it fixed.
	Linear bool
	// OnRetry, when set, is called after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy mirrors the importer's CLI defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: time.Second, Linear: true}
}

func (p RetryPolicy) backoff() retry.Backoff {
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}

	var n time.Duration
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		if p.Linear {
			return delay * n, false
		}
		return delay, false
	})
	return retry.WithMaxRetries(p.MaxRetries, next)
}

// Retry invokes fn and retries every failure the same way until the policy is
// exhausted, then returns the last error. Cancelling ctx stops the loop with
// ctx.Err().
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
	)

	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		if err != nil {
			if p.OnRetry != nil && uint64(attempt) <= p.MaxRetries {
				p.OnRetry(attempt, err)
			}
			return retry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
