package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_ExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")

	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	},
		WithMaxRetries(3),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)

	// Total attempts = 1 + MaxRetries, and the last failure is re-raised.
	require.Equal(t, 4, calls)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "4 attempt")
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	},
		WithMaxRetries(5),
		WithBaseDelay(time.Millisecond),
	)

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_NoRetriesOnImmediateSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	},
		WithMaxRetries(10),
		WithBaseDelay(50*time.Millisecond),
	)

	require.Error(t, err)
	require.Equal(t, 1, calls)
}
