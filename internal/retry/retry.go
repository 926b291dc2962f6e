package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Policy bounds a retry loop. The wait after the n-th failed attempt is
// n * BaseDelay.
type Policy struct {
	MaxAttempts int           `mapstructure:"maxAttempts" default:"5"`
	BaseDelay   time.Duration `mapstructure:"baseDelay" default:"1s"`
}

// LinearBackOff waits attempt * Base between attempts.
type LinearBackOff struct {
	Base    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Base
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() { b.attempt = 0 }

// Retrier runs operations under a Policy.
type Retrier struct {
	policy    Policy
	log       logrus.FieldLogger
	permanent []error
}

// Option configures a Retrier.
type Option func(*Retrier)

// NonRetryable marks errors that end the loop immediately when matched with
// errors.Is. Context cancellation is always non-retryable.
func NonRetryable(errs ...error) Option {
	return func(r *Retrier) {
		r.permanent = append(r.permanent, errs...)
	}
}

// New creates a Retrier.
func New(policy Policy, log logrus.FieldLogger, opts ...Option) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	r := &Retrier{
		policy: policy,
		log:    log.WithField("module", "retry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the effective policy.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// context ends, or MaxAttempts is reached. In the last case the returned
// error matches both ErrRetriesExhausted and the last error from fn.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	var (
		attempts  int
		permanent bool
	)

	op := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if r.isPermanent(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		r.log.WithFields(logrus.Fields{
			"operation":    operation,
			"attempt":      attempts,
			"max_attempts": r.policy.MaxAttempts,
			"retry_in":     wait,
		}).WithError(err).Warn("Operation failed, retrying")
	}

	err := backoff.RetryNotify(op, r.backOff(ctx), notify)
	switch {
	case err == nil:
		if attempts > 1 {
			r.log.WithFields(logrus.Fields{"operation": operation, "attempts": attempts}).Debug("Operation succeeded after retries")
		}
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}

	r.log.WithFields(logrus.Fields{"operation": operation, "attempts": attempts}).WithError(err).Error("Operation failed, giving up")
	return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrRetriesExhausted, operation, attempts, err)
}

func (r *Retrier) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.StopBackOff{}
	if r.policy.MaxAttempts > 1 {
		b = backoff.WithMaxRetries(&LinearBackOff{Base: r.policy.BaseDelay}, uint64(r.policy.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

func (r *Retrier) isPermanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for _, p := range r.permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}
