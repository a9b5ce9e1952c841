package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := New("scorer", WithFailureThreshold(3))

	cb.OnFailure()
	cb.OnFailure()
	require.Equal(t, Closed, cb.State())

	cb.OnFailure()
	require.Equal(t, Open, cb.State())
	require.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := New("scorer", WithFailureThreshold(3))

	cb.OnFailure()
	cb.OnFailure()
	cb.OnFailure()
	require.Equal(t, Open, cb.State())

	cb.OnSuccess()
	require.Equal(t, Closed, cb.State())

	// Counter was reset, so opening takes the full threshold again.
	cb.OnFailure()
	cb.OnFailure()
	require.Equal(t, Closed, cb.State())
	cb.OnFailure()
	require.Equal(t, Open, cb.State())
}

func TestCircuitBreaker_FailuresMustBeConsecutive(t *testing.T) {
	cb := New("scorer", WithFailureThreshold(3))

	cb.OnFailure()
	cb.OnFailure()
	cb.OnSuccess()
	cb.OnFailure()
	cb.OnFailure()

	require.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	mock := clock.NewMock()
	cb := New("scorer", WithFailureThreshold(1), WithOpenTimeout(30*time.Second), WithClock(mock))

	cb.OnFailure()
	require.Equal(t, Open, cb.State())
	require.False(t, cb.Allow())

	mock.Add(29 * time.Second)
	require.False(t, cb.Allow())

	mock.Add(time.Second)
	require.True(t, cb.Allow())
	require.Equal(t, HalfOpen, cb.State())

	// A failed probe re-opens the breaker and restarts the timeout.
	cb.OnFailure()
	require.Equal(t, Open, cb.State())
	require.False(t, cb.Allow())

	mock.Add(30 * time.Second)
	require.True(t, cb.Allow())
	require.Equal(t, HalfOpen, cb.State())

	// A successful probe closes it.
	cb.OnSuccess()
	require.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_Do(t *testing.T) {
	cb := New("scorer", WithFailureThreshold(2))
	boom := errors.New("boom")

	calls := 0
	fail := func(ctx context.Context) error {
		calls++
		return boom
	}

	require.ErrorIs(t, cb.Do(context.Background(), fail), boom)
	require.ErrorIs(t, cb.Do(context.Background(), fail), boom)
	require.Equal(t, Open, cb.State())

	// Open breaker rejects without invoking the target.
	err := cb.Do(context.Background(), fail)
	require.ErrorIs(t, err, ErrOpen)
	require.Equal(t, 2, calls)
}

func TestSet_ForTarget(t *testing.T) {
	s := NewSet(10, time.Minute, WithFailureThreshold(1))

	a := s.ForTarget("a")
	b := s.ForTarget("b")

	require.NotSame(t, a, b)
	require.Same(t, a, s.ForTarget("a"))

	// Breakers from the same set share configuration but not state.
	a.OnFailure()
	require.Equal(t, Open, a.State())
	require.Equal(t, Closed, b.State())
}
