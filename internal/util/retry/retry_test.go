package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExponentialBackoff_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("DependencyViolation")
		}
		return nil
	}, WithInitialDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoff_MaxRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return errors.New("persistent")
	}, WithMaxRetries(3), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent")
	assert.Equal(t, 4, attempts)
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithExponentialBackoff(ctx, func() error {
		attempts++
		return errors.New("transient")
	}, WithInitialDelay(10*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_FatalError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("auth failure")
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(sentinel)
	}, WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestPoll(t *testing.T) {
	t.Parallel()

	t.Run("returns when condition is met", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := Poll(context.Background(), time.Millisecond, 10, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := Poll(context.Background(), time.Millisecond, 4, func(context.Context) (bool, error) {
			calls++
			return false, nil
		})
		require.ErrorIs(t, err, ErrPollExhausted)
		assert.Equal(t, 4, calls)
	})

	t.Run("stops on condition error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("describe failed")
		err := Poll(context.Background(), time.Millisecond, 10, func(context.Context) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := Poll(ctx, 5*time.Millisecond, 0, func(context.Context) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestFatal(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Fatal(nil))

	sentinel := errors.New("sentinel")
	wrapped := fmt.Errorf("context: %w", Fatal(sentinel))
	assert.True(t, IsFatal(wrapped))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.False(t, IsFatal(sentinel))
	assert.Equal(t, sentinel, errors.Unwrap(Fatal(sentinel)))
}
