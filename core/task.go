package core

// TaskIDKey is the required key identifying a task. Every task passed to an
// orchestrator must carry a non-empty string value under this key.
const TaskIDKey = "task_id"

// Task is the unit of work handed to an orchestrator. Beyond the required
// task_id the payload is domain-defined and opaque to the engine. Orchestrators
// never mutate the task they were given; patterns derive modified copies to
// pass downstream.
type Task map[string]any

// ID returns the task identifier, or the empty string if it is missing or not
// a string.
func (t Task) ID() string {
	id, _ := t[TaskIDKey].(string)
	return id
}

// Clone returns a shallow copy of the task. Top-level keys can be added or
// replaced on the copy without affecting the original.
func (t Task) Clone() Task {
	c := make(Task, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}
