package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/core"
	lg "github.com/orchestral/conductor/log"
)

// InvariantFunc checks a state invariant against the accumulated handler
// outputs. A non-nil error records a violation; violations never abort the
// run, they are collected for the audit result.
type InvariantFunc func(accumulated core.Result) error

// AuditEntry records one state visit and the transition taken out of it. To
// is empty for the terminal state.
type AuditEntry struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Timestamp time.Time   `json:"timestamp"`
	Output    core.Result `json:"output,omitempty"`
}

// StateMachine executes an explicit FSM. States may have a handler registered
// under the state name; states without one are passed through without side
// effects. The next state is always the first permitted transition of the
// current state; a state with no permitted transitions is terminal. A handler
// failure is fatal.
type StateMachine struct {
	*base

	states      []string
	initial     string
	transitions map[string][]string
	invariants  map[string]InvariantFunc
}

// NewStateMachine validates and builds the FSM. states must be non-empty and
// contain initialState. transitions must have an entry for every state and
// may only name known states; passing nil derives a strict linear chain from
// the states order.
func NewStateMachine(registry *capability.Registry, states []string, initialState string, transitions map[string][]string, opts ...Option) (*StateMachine, error) {
	const pattern = "state_machine"

	if len(states) == 0 {
		return nil, &ValidationError{Pattern: pattern, Reason: "states list is empty"}
	}

	known := make(map[string]bool, len(states))
	for _, s := range states {
		known[s] = true
	}

	if !known[initialState] {
		return nil, &ValidationError{
			Pattern: pattern,
			Reason:  fmt.Sprintf("initial state %q is not a member of states", initialState),
		}
	}

	if transitions == nil {
		transitions = linearChain(states)
	} else {
		for _, s := range states {
			targets, ok := transitions[s]
			if !ok {
				return nil, &ValidationError{
					Pattern: pattern,
					Reason:  fmt.Sprintf("transition table is missing state %q", s),
				}
			}
			for _, t := range targets {
				if !known[t] {
					return nil, &ValidationError{
						Pattern: pattern,
						Reason:  fmt.Sprintf("transition %s -> %s names an unknown state", s, t),
					}
				}
			}
		}
	}

	return &StateMachine{
		base:        newBase(registry, opts...),
		states:      states,
		initial:     initialState,
		transitions: transitions,
		invariants:  make(map[string]InvariantFunc),
	}, nil
}

// RegisterStateHandler attaches a handler to a state. Handlers are optional
// per state.
func (sm *StateMachine) RegisterStateHandler(state string, c capability.Capability) error {
	if !sm.isState(state) {
		return &ValidationError{Pattern: sm.pattern(), Reason: fmt.Sprintf("unknown state %q", state)}
	}
	sm.registry.Register(state, c)
	return nil
}

// RegisterInvariant attaches an invariant check to a state.
func (sm *StateMachine) RegisterInvariant(state string, inv InvariantFunc) error {
	if !sm.isState(state) {
		return &ValidationError{Pattern: sm.pattern(), Reason: fmt.Sprintf("unknown state %q", state)}
	}
	sm.invariants[state] = inv
	return nil
}

// Execute runs the FSM from the initial state to a terminal state. The result
// carries the final state, the state history, the audit trail and any
// non-fatal invariant violations.
func (sm *StateMachine) Execute(ctx context.Context, task core.Task) (core.Result, error) {
	return sm.execute(ctx, task, sm)
}

func (sm *StateMachine) pattern() string {
	return "state_machine"
}

func (sm *StateMachine) run(ctx context.Context, task core.Task) (core.Result, error) {
	state := &core.WorkflowState{TaskID: task.ID()}
	accumulated := core.Result{}
	history := []string{}
	audit := []AuditEntry{}
	violations := []string{}

	current := sm.initial
	for {
		var out core.Result

		if handler, ok := sm.registry.Get(current); ok {
			input := task.Clone()
			for k, v := range accumulated {
				if k == core.TaskIDKey {
					continue
				}
				input[k] = v
			}

			var err error
			out, err = sm.invoke(ctx, current, handler, input)
			if err != nil {
				sm.logStep(current, core.StepFailure, nil, err)
				return nil, err
			}
			sm.logStep(current, core.StepSuccess, out, nil)

			for k, v := range out {
				accumulated[k] = v
			}
		}

		if inv, ok := sm.invariants[current]; ok {
			if err := inv(accumulated.Clone()); err != nil {
				violations = append(violations, fmt.Sprintf("state %q: %v", current, err))
				sm.logger.Warn("state invariant violated",
					lg.StateKey, current, lg.TaskIDKey, task.ID(), "error", err)
			}
		}

		history = append(history, current)
		state.StepHistory = history
		state.CurrentState = current
		state.Accumulated = accumulated.Clone()
		sm.saveCheckpoint(ctx, stateKey(task.ID(), current), state)

		next := ""
		if targets := sm.transitions[current]; len(targets) > 0 {
			next = targets[0]
		}

		audit = append(audit, AuditEntry{
			From:      current,
			To:        next,
			Timestamp: time.Now(),
			Output:    out,
		})

		if next == "" {
			// Terminal state reached.
			break
		}

		// True by construction, re-checked defensively.
		if !permitted(sm.transitions[current], next) {
			return nil, &ValidationError{
				Pattern: sm.pattern(),
				Reason:  fmt.Sprintf("transition %s -> %s is not permitted", current, next),
			}
		}

		current = next
	}

	return core.Result{
		StatusKey:              core.StatusSuccess,
		"final_state":          current,
		"state_history":        history,
		"audit_trail":          audit,
		"invariant_violations": violations,
		"final_output":         accumulated,
	}, nil
}

func (sm *StateMachine) isState(state string) bool {
	for _, s := range sm.states {
		if s == state {
			return true
		}
	}
	return false
}

// linearChain derives the default strict transition table: each state may
// only move to the next one in order, the last state is terminal.
func linearChain(states []string) map[string][]string {
	transitions := make(map[string][]string, len(states))
	for i, s := range states {
		if i < len(states)-1 {
			transitions[s] = []string{states[i+1]}
		} else {
			transitions[s] = []string{}
		}
	}
	return transitions
}

func permitted(targets []string, next string) bool {
	for _, t := range targets {
		if t == next {
			return true
		}
	}
	return false
}

func stateKey(taskID, state string) string {
	return fmt.Sprintf("%s_state_%s", taskID, state)
}
