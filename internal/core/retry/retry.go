package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPolicy is returned by Do when the policy allows no attempts.
var ErrInvalidPolicy = errors.New("retry: max attempts must be > 0")

// Policy describes exponential backoff between attempts.
//
// MaxAttempts: total calls including the first (must be > 0).
// Multiplier:  base unit; the wait after attempt n is Multiplier * 2^n.
// MinWait:     lower bound on any wait.
// MaxWait:     upper bound on any wait (0 means unbounded).
type Policy struct {
	MaxAttempts int
	Multiplier  time.Duration
	MinWait     time.Duration
	MaxWait     time.Duration
}

// DefaultPolicy is 5 attempts waiting 2s*2^n clamped to [4s, 60s].
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Multiplier:  2 * time.Second,
		MinWait:     4 * time.Second,
		MaxWait:     60 * time.Second,
	}
}

// Backoff returns the wait after the given 1-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	wait := time.Duration(float64(p.Multiplier) * math.Pow(2, float64(attempt)))
	if wait < p.MinWait {
		wait = p.MinWait
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-time Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type options struct {
	sleep   Sleeper
	onRetry func(attempt int, wait time.Duration, err error)
	retryIf func(err error) bool
}

// Option customises Do.
type Option func(*options)

// WithSleeper replaces the real-time sleeper.
func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

// OnRetry is called after each failed attempt that will be retried.
func OnRetry(fn func(attempt int, wait time.Duration, err error)) Option {
	return func(o *options) { o.onRetry = fn }
}

// RetryIf stops retrying as soon as fn reports false for an error.
func RetryIf(fn func(err error) bool) Option {
	return func(o *options) { o.retryIf = fn }
}

// Do calls op until it succeeds or the policy runs out of attempts, and
// returns the last error. A cancelled context stops retrying immediately.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, opts ...Option) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidPolicy
	}
	o := options{sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if o.retryIf != nil && !o.retryIf(lastErr) {
			return lastErr
		}

		wait := p.Backoff(attempt)
		if o.onRetry != nil {
			o.onRetry(attempt, wait, lastErr)
		}
		if err := o.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}
	return lastErr
}
