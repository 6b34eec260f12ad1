// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2
	// DefaultBaseDelay is the base delay for exponential backoff.
	DefaultBaseDelay = 500 * time.Millisecond
	// DefaultMaxDelay caps a single backoff delay.
	DefaultMaxDelay = 10 * time.Second
)

// Policy holds retry configuration.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	OnRetry    func(attempt Attempt, delay time.Duration, err error) // Optional callback before each retry
}

// DefaultPolicy returns a Policy with default values.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Attempt describes the call being made. Number starts at 1.
// Escalated is set on every retry so callers can relax their requirements.
type Attempt struct {
	Number    int
	Escalated bool
}

// Operation is a function that can be retried.
type Operation func(ctx context.Context, attempt Attempt) error

// permanentError stops retrying immediately.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do runs op until it succeeds, returns a permanent error, the retries are
// exhausted or ctx is done. It returns the number of attempts made and the
// last error.
func Do(ctx context.Context, p Policy, op Operation) (int, error) {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}

	var lastErr error
	attempts := 0
	for n := 0; n <= p.MaxRetries; n++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return attempts, lastErr
		}

		attempts++
		lastErr = op(ctx, Attempt{Number: attempts, Escalated: n > 0})
		if lastErr == nil {
			return attempts, nil
		}

		var perm permanentError
		if errors.As(lastErr, &perm) {
			return attempts, perm.err
		}

		if n >= p.MaxRetries {
			return attempts, lastErr
		}

		delay := CalculateDelay(p.BaseDelay, n, p.MaxDelay)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Number: attempts + 1, Escalated: true}, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, lastErr
		case <-timer.C:
		}
	}

	return attempts, lastErr
}

// CalculateDelay returns base * 2^attempt, capped at maxDelay.
func CalculateDelay(base time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	if attempt > 30 {
		return maxDelay
	}
	delay := base * time.Duration(1<<attempt)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
