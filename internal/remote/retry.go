package remote

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how a remote call is retried. Only KindTransient failures
// are retried; everything else is returned on first occurrence.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	// Base is the delay unit: the wait after attempt n is Base*n.
	Base time.Duration
	// OnRetry, if set, is called before each wait with the attempt that
	// just failed (1-based), its error, and the delay about to be slept.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy is three attempts with 2s, 4s waits between them.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: 2 * time.Second}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	return p.Base * time.Duration(attempt)
}

// linearBackOff yields Base, 2*Base, 3*Base, ... with no jitter.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// Call runs op under p. On success it returns op's result. A non-transient
// error is returned immediately and unmodified; a transient error is retried
// until MaxAttempts is reached, after which the last error is returned
// unmodified. Cancelling ctx aborts the wait between attempts.
func Call[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var (
		attempt int
		lastErr error
	)
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op()
		lastErr = err
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(&linearBackOff{base: p.Base}),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(attempt, err, delay)
			}
		}),
	)
	if err != nil && lastErr != nil && errors.Is(err, lastErr) {
		// Strip the Permanent wrapper so callers see op's own error.
		err = lastErr
	}
	return result, err
}
