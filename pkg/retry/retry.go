// Package retry runs operations under the redelivery and catalog retry
// budgets. Errors reporting IsFatal() == true stop the loop at once.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type fatal interface {
	IsFatal() bool
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) IsFatal() bool { return true }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that no further attempt is made.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isFatal(err error) bool {
	var f fatal
	return errors.As(err, &f) && f.IsFatal()
}

// Policy is an exponential budget. MaxAttempts counts the first call.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPolicy().MaxAttempts
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()

	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(attempts-1))
}

// Notify is called before each wait with the attempt that just failed.
type Notify func(attempt int, err error, nextDelay time.Duration)

// Do calls fn until it succeeds, returns a fatal error or the policy is
// spent. The last error is returned unchanged.
func Do(ctx context.Context, policy Policy, fn func() error, onRetry Notify) error {
	return run(fn, policy.backOff(ctx), onRetry)
}

// Constant calls fn up to 1+maxRetries times with a fixed delay between
// attempts.
func Constant(ctx context.Context, maxRetries int, delay time.Duration, fn func() error, onRetry Notify) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	b := backoff.WithMaxRetries(backoff.WithContext(backoff.NewConstantBackOff(delay), ctx), uint64(maxRetries))
	return run(fn, b, onRetry)
}

func run(fn func() error, b backoff.BackOff, onRetry Notify) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && isFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if onRetry != nil {
		notify = func(err error, next time.Duration) {
			onRetry(attempt, err, next)
		}
	}

	err := backoff.RetryNotify(operation, b, notify)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
