package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset by peer")

func newTestRetrier(policy Policy, opts ...Option) (*Retrier, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return New(policy, log, opts...), hook
}

func TestLinearBackOffSequence(t *testing.T) {
	b := &LinearBackOff{Base: time.Second}
	assert.Equal(t, 1*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 3*time.Second, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.NextBackOff())
}

func TestDoSucceedsFirstTry(t *testing.T) {
	r, hook := newTestRetrier(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	calls := 0
	err := r.Do(context.Background(), "getLogs", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, hook.AllEntries())
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	r, hook := newTestRetrier(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	calls := 0
	err := r.Do(context.Background(), "getLogs", func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestDoExhaustsAttempts(t *testing.T) {
	r, _ := newTestRetrier(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	calls := 0
	start := time.Now()
	err := r.Do(context.Background(), "getLogs 100-199", func(context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errTransient, "last error is preserved")
	assert.Contains(t, err.Error(), "getLogs 100-199")
	// 1+2+3+4 base delays between five attempts.
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestDoSingleAttempt(t *testing.T) {
	r, _ := newTestRetrier(Policy{MaxAttempts: 1, BaseDelay: time.Millisecond})

	calls := 0
	err := r.Do(context.Background(), "call", func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsMeansOne(t *testing.T) {
	r, _ := newTestRetrier(Policy{})
	assert.Equal(t, 1, r.Policy().MaxAttempts)
}

func TestDoNonRetryable(t *testing.T) {
	errReverted := errors.New("execution reverted")
	r, _ := newTestRetrier(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, NonRetryable(errReverted))

	calls := 0
	err := r.Do(context.Background(), "upgradeTo", func(context.Context) error {
		calls++
		return errors.Join(errReverted, errors.New("caller is not the admin"))
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errReverted)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	r, _ := newTestRetrier(Policy{MaxAttempts: 5, BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, "getLogs", func(context.Context) error {
			calls++
			return errTransient
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDoContextErrorFromOperationIsPermanent(t *testing.T) {
	r, _ := newTestRetrier(Policy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	calls := 0
	err := r.Do(context.Background(), "call", func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}
