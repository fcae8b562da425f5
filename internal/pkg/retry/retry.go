// Package retry runs operations with bounded exponential backoff and full
// jitter. It generalizes the backoff used by the HTTP retry client to any
// func returning an error.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy configures Do. Zero fields take the defaults of DefaultPolicy.
type Policy struct {
	// MaxAttempts counts the initial call (3 means one call plus two retries).
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// MinDelay is the floor applied after jitter.
	MinDelay time.Duration
	// Retryable decides whether a failed attempt may be retried. Nil retries
	// every error not marked Permanent.
	Retryable func(error) bool
}

// DefaultPolicy returns 3 attempts, 100ms base, 2s cap and a 10ms floor.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		MinDelay:    10 * time.Millisecond,
	}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MinDelay <= 0 {
		p.MinDelay = d.MinDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. The last error is returned unwrapped from any
// Permanent marker.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.WithDefaults()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.delay(attempt - 1))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return lastErr
				}
				return ctx.Err()
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		lastErr = err
		if ctx.Err() != nil {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return lastErr
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// delay returns the wait before retry n (1-based):
// random(0, min(MaxDelay, BaseDelay*2^(n-1))), floored at MinDelay.
func (p Policy) delay(n int) time.Duration {
	exp := float64(p.BaseDelay) * math.Pow(2, float64(n-1))
	if exp > float64(p.MaxDelay) {
		exp = float64(p.MaxDelay)
	}

	jittered := time.Duration(rand.Float64() * exp)
	if jittered < p.MinDelay {
		jittered = p.MinDelay
	}
	return jittered
}
