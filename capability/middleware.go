package capability

import (
	"context"

	"github.com/orchestral/conductor/breaker"
	"github.com/orchestral/conductor/core"
	"github.com/orchestral/conductor/retry"
)

// WithRetry wraps a capability so that failed invocations are retried with
// bounded exponential backoff before the failure is reported to the
// orchestrator.
func WithRetry(c Capability, opts ...retry.Option) Capability {
	return Func(func(ctx context.Context, task core.Task) (core.Result, error) {
		var result core.Result

		err := retry.Do(ctx, func(ctx context.Context) error {
			var err error
			result, err = c.Invoke(ctx, task)
			return err
		}, opts...)
		if err != nil {
			return nil, err
		}

		return result, nil
	})
}

// WithBreaker gates a capability behind a circuit breaker. While the breaker
// is open, invocations fail immediately with breaker.ErrOpen without calling
// the capability.
func WithBreaker(c Capability, cb *breaker.CircuitBreaker) Capability {
	return Func(func(ctx context.Context, task core.Task) (core.Result, error) {
		var result core.Result

		err := cb.Do(ctx, func(ctx context.Context) error {
			var err error
			result, err = c.Invoke(ctx, task)
			return err
		})
		if err != nil {
			return nil, err
		}

		return result, nil
	})
}
