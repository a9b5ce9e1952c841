// Package log holds the shared structured-logging field keys. All engine
// packages log through *slog.Logger using these keys so that downstream
// collectors see a consistent namespace.
package log

const (
	NamespaceKey = "conductor"

	TaskIDKey      = NamespaceKey + ".task.id"
	ExecutionIDKey = NamespaceKey + ".execution.id"
	PatternKey     = NamespaceKey + ".pattern"

	StepKey       = NamespaceKey + ".step"
	StateKey      = NamespaceKey + ".state"
	SpecialistKey = NamespaceKey + ".specialist"
	AgentKey      = NamespaceKey + ".agent"

	StatusKey   = NamespaceKey + ".status"
	AttemptKey  = NamespaceKey + ".attempt"
	DurationKey = NamespaceKey + ".duration_ms"

	// TargetKey names the logical target a circuit breaker protects.
	TargetKey = NamespaceKey + ".breaker.target"

	CheckpointKey = NamespaceKey + ".checkpoint.key"
)
