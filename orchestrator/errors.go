package orchestrator

import (
	"fmt"
)

// ValidationError is raised synchronously before any capability is invoked:
// missing task_id, empty registry, malformed planner output, invalid FSM
// table or wrong agent count. It is never retried.
type ValidationError struct {
	Pattern string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation: %s", e.Pattern, e.Reason)
}

// CapabilityError wraps a failure raised by a capability during invocation.
// Sequential and state-machine patterns propagate it; hierarchical and voting
// patterns isolate it per branch.
type CapabilityError struct {
	// Step is the step, state, specialist or agent name that failed.
	Step string

	Err error

	// Stacktrace is set when the capability panicked.
	Stacktrace string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %q: %v", e.Step, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
