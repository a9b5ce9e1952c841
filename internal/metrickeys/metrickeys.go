package metrickeys

const (
	Prefix = "conductor."

	// Orchestration
	ExecuteStarted  = Prefix + "orchestrator.execute.started"
	ExecuteFinished = Prefix + "orchestrator.execute.finished"
	ExecuteDuration = Prefix + "orchestrator.execute.duration"

	StepProcessed = Prefix + "orchestrator.step.processed"

	// Circuit breaker
	BreakerStateChange = Prefix + "breaker.state_change"
	BreakerRejected    = Prefix + "breaker.rejected"
	BreakerSetSize     = Prefix + "breaker.set.size"
	BreakerSetEviction = Prefix + "breaker.set.eviction"

	// Retries
	RetryAttempt = Prefix + "retry.attempt"

	// Checkpoints
	CheckpointSaved  = Prefix + "checkpoint.saved"
	CheckpointLoaded = Prefix + "checkpoint.loaded"
)

// Tag names
const (
	Pattern = "pattern"
	Step    = "step"
	Status  = "status"

	// Target protected by a circuit breaker
	Target = "target"

	// Reason for evicting a breaker from the breaker set
	EvictionReason = "reason"

	// State of a circuit breaker after a transition
	BreakerState = "state"

	Store = "store"
)
