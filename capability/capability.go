// Package capability defines the contract between the orchestration engine
// and the agents it coordinates, and the ordered registry they are stored in.
package capability

import (
	"context"

	"github.com/orchestral/conductor/core"
)

// Capability is an opaque agent: it accepts a task-shaped mapping and returns
// a result-shaped mapping or fails. No richer contract is required; the
// engine treats all failures uniformly.
type Capability interface {
	Invoke(ctx context.Context, task core.Task) (core.Result, error)
}

// Func adapts a plain function to the Capability interface.
type Func func(ctx context.Context, task core.Task) (core.Result, error)

func (f Func) Invoke(ctx context.Context, task core.Task) (core.Result, error) {
	return f(ctx, task)
}
