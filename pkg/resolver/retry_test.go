package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_FirstAttemptSucceeds(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_SecondAttemptSucceeds(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_BudgetExhausted(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}

	failure := errors.New("backend down")
	calls := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		calls++
		return failure
	})

	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, calls, "exactly two attempts, never a third")
}

func TestRetryPolicy_ZeroAttemptsMeansOne(t *testing.T) {
	policy := RetryPolicy{}

	calls := 0
	_ = policy.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("nope")
	})

	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ContextCancelledDuringDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	// Give the first attempt time to fail and enter the delay.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
