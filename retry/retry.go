// Package retry wraps a fallible operation with bounded, jittered exponential
// backoff. An operation is attempted 1+MaxRetries times; the final failure is
// always returned to the caller, never swallowed.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/orchestral/conductor/internal/metrickeys"
	lg "github.com/orchestral/conductor/log"
	"github.com/orchestral/conductor/metrics"
)

// Do invokes op, retrying on failure with exponential backoff until it
// succeeds, MaxRetries retries are exhausted, or ctx is canceled. The delay
// before retry n is min(BaseDelay * ExponentialBase^n, MaxDelay), randomized
// by the jitter factor. On exhaustion the last failure is returned, wrapped
// with the total attempt count.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	options := ApplyOptions(opts...)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = options.BaseDelay
	b.Multiplier = options.ExponentialBase
	b.MaxInterval = options.MaxDelay
	b.RandomizationFactor = options.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Clock = options.Clock
	b.Reset()

	attempt := 0

	notify := func(err error, delay time.Duration) {
		options.Metrics.Counter(metrickeys.RetryAttempt, metrics.Tags{}, 1)
		options.Logger.Debug(
			"operation failed, retrying",
			lg.AttemptKey, attempt,
			lg.DurationKey, delay.Milliseconds(),
			"error", err,
		)
	}

	err := backoff.RetryNotifyWithTimer(
		func() error {
			attempt++
			return op(ctx)
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(options.MaxRetries)), ctx),
		notify,
		&clockTimer{clock: options.Clock},
	)
	if err != nil {
		return fmt.Errorf("after %d attempt(s): %w", attempt, err)
	}

	return nil
}

// clockTimer adapts the injectable clock to the backoff timer interface so
// that delays are deterministic under a mock clock.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
