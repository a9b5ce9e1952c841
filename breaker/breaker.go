// Package breaker implements a per-target circuit breaker. A breaker instance
// is bound to exactly one logical target and gates calls to it: after a
// configurable number of consecutive failures the breaker opens and rejects
// calls without invoking the target, until a cooldown elapses and a probe call
// is allowed through.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orchestral/conductor/internal/metrickeys"
	lg "github.com/orchestral/conductor/log"
	"github.com/orchestral/conductor/metrics"
)

// ErrOpen is returned by Do when the breaker rejects a call. Callers check it
// with errors.Is.
var ErrOpen = errors.New("circuit breaker open")

// State of a circuit breaker.
type State int

const (
	// Closed allows all calls.
	Closed State = iota
	// Open rejects all calls until the open timeout elapses.
	Open
	// HalfOpen allows a probe call after the open timeout. A success closes
	// the breaker, a failure re-opens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker gates calls to one logical target. It is safe for use by a
// single caller driving retries for that target; all state transitions touch
// only in-memory counters.
type CircuitBreaker struct {
	mu sync.Mutex

	target  string
	options Options

	state               State
	consecutiveFailures int
	openedAt            time.Time
}

// New creates a closed breaker for the given target.
func New(target string, opts ...Option) *CircuitBreaker {
	options := ApplyOptions(opts...)

	return &CircuitBreaker{
		target:  target,
		options: options,
		state:   Closed,
	}
}

// Target returns the logical target this breaker protects.
func (cb *CircuitBreaker) Target() string {
	return cb.target
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Allow reports whether a call to the target may proceed. While the breaker
// is open and the open timeout has not elapsed it returns false. Once the
// timeout has elapsed the breaker moves to half-open and the next call is
// allowed through as a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != Open {
		return true
	}

	if cb.options.Clock.Now().Sub(cb.openedAt) < cb.options.OpenTimeout {
		return false
	}

	cb.transition(HalfOpen)
	return true
}

// OnSuccess records a successful call. Any success resets the failure counter
// and closes the breaker, regardless of the state it was in.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state != Closed {
		cb.transition(Closed)
	}
}

// OnFailure records a failed call. Reaching the failure threshold with
// consecutive failures opens the breaker; a failed half-open probe re-opens
// it immediately.
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++

	if cb.state == HalfOpen || cb.consecutiveFailures >= cb.options.FailureThreshold {
		cb.openedAt = cb.options.Clock.Now()
		if cb.state != Open {
			cb.transition(Open)
		}
	}
}

// Do invokes fn through the breaker. If the breaker is open, fn is not
// invoked and the returned error wraps ErrOpen.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.Allow() {
		cb.options.Metrics.Counter(
			metrickeys.BreakerRejected, metrics.Tags{metrickeys.Target: cb.target}, 1)
		return fmt.Errorf("target %q: %w", cb.target, ErrOpen)
	}

	if err := fn(ctx); err != nil {
		cb.OnFailure()
		return err
	}

	cb.OnSuccess()
	return nil
}

// transition moves the breaker to the given state. Callers must hold cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to

	cb.options.Logger.Debug(
		"circuit breaker state change",
		lg.TargetKey, cb.target,
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	cb.options.Metrics.Counter(metrickeys.BreakerStateChange, metrics.Tags{
		metrickeys.Target:       cb.target,
		metrickeys.BreakerState: to.String(),
	}, 1)
}
