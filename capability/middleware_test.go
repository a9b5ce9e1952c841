package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestral/conductor/breaker"
	"github.com/orchestral/conductor/core"
	"github.com/orchestral/conductor/retry"
)

func TestWithRetry_RecoversTransientFailure(t *testing.T) {
	calls := 0
	flaky := Func(func(ctx context.Context, task core.Task) (core.Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return core.Result{"ok": true}, nil
	})

	c := WithRetry(flaky, retry.WithMaxRetries(3), retry.WithBaseDelay(0))

	res, err := c.Invoke(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)
	require.Equal(t, core.Result{"ok": true}, res)
	require.Equal(t, 3, calls)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	broken := Func(func(ctx context.Context, task core.Task) (core.Result, error) {
		calls++
		return nil, boom
	})

	c := WithRetry(broken, retry.WithMaxRetries(2), retry.WithBaseDelay(0))

	_, err := c.Invoke(context.Background(), core.Task{"task_id": "T1"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestWithBreaker_RejectsWhileOpen(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	broken := Func(func(ctx context.Context, task core.Task) (core.Result, error) {
		calls++
		return nil, boom
	})

	cb := breaker.New("scorer", breaker.WithFailureThreshold(2))
	c := WithBreaker(broken, cb)

	ctx := context.Background()
	task := core.Task{"task_id": "T1"}

	_, err := c.Invoke(ctx, task)
	require.ErrorIs(t, err, boom)
	_, err = c.Invoke(ctx, task)
	require.ErrorIs(t, err, boom)

	// Threshold reached; the capability is no longer invoked.
	_, err = c.Invoke(ctx, task)
	require.ErrorIs(t, err, breaker.ErrOpen)
	require.Equal(t, 2, calls)
}
