package core

import "time"

// Run statuses reported in the result envelope of every pattern.
const (
	StatusSuccess          = "success"
	StatusPartialSuccess   = "partial_success"
	StatusFailure          = "failure"
	StatusValidationFailed = "validation_failed"
)

// Step statuses recorded in the execution log.
const (
	StepSuccess = "success"
	StepFailure = "failure"
)

// ExecutionLogEntry is an append-only record of one attempted step. Entries
// are owned by the orchestrator instance that produced them and survive until
// the instance is discarded.
type ExecutionLogEntry struct {
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Output    Result    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowState is the working memory a pattern accumulates during a single
// Execute call. It is created when the call starts, mutated only by the
// owning pattern and discarded when the call returns, unless it was
// checkpointed along the way.
type WorkflowState struct {
	TaskID string `json:"task_id"`

	// StepHistory lists completed step or state names in execution order.
	// It is append-only; entries are never reordered.
	StepHistory []string `json:"step_history,omitempty"`

	// Accumulated is the merged output of all completed steps/handlers.
	Accumulated Result `json:"accumulated,omitempty"`

	// CurrentState is the FSM state at checkpoint time (state machine only).
	CurrentState string `json:"current_state,omitempty"`

	// Votes holds collected votes (voting only).
	Votes []Result `json:"votes,omitempty"`
}
