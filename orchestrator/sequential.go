package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/checkpoint"
	"github.com/orchestral/conductor/core"
	lg "github.com/orchestral/conductor/log"
)

// Sequential runs every registered capability as a linear chain in
// registration order. Each step receives the original task merged with the
// previous step's output; extraction-shaped outputs are nested under
// "extracted_data" instead of flattened. A step failure is fatal and aborts
// the chain. After each successful step the workflow state is checkpointed
// under {task_id}_step_{n}.
type Sequential struct {
	*base
}

func NewSequential(registry *capability.Registry, opts ...Option) *Sequential {
	return &Sequential{base: newBase(registry, opts...)}
}

// Execute runs the chain. Terminal statuses are "success" (all steps ran) and
// "validation_failed" (step validation is enabled and a step reported
// is_valid == false).
func (s *Sequential) Execute(ctx context.Context, task core.Task) (core.Result, error) {
	return s.execute(ctx, task, s)
}

// Resume continues a chain from the last checkpoint written for the task,
// re-running only the steps after it. Without a checkpoint it behaves exactly
// like Execute.
func (s *Sequential) Resume(ctx context.Context, task core.Task) (core.Result, error) {
	return s.execute(ctx, task, &sequentialResume{s})
}

func (s *Sequential) pattern() string {
	return "sequential"
}

func (s *Sequential) run(ctx context.Context, task core.Task) (core.Result, error) {
	return s.runFrom(ctx, task, 0, &core.WorkflowState{TaskID: task.ID()}, nil)
}

// runFrom executes the chain starting at step index from (0-based), seeded
// with the given state and step records restored from a checkpoint.
func (s *Sequential) runFrom(ctx context.Context, task core.Task, from int, state *core.WorkflowState, restored []core.Result) (core.Result, error) {
	stepRecords := restored
	prev := state.Accumulated

	names := s.registry.Names()
	for i := from; i < len(names); i++ {
		name := names[i]
		c, _ := s.registry.Get(name)

		out, err := s.invoke(ctx, name, c, s.stepInput(task, prev))
		if err != nil {
			s.logStep(name, core.StepFailure, nil, err)
			return nil, err
		}
		s.logStep(name, core.StepSuccess, out, nil)

		stepRecords = append(stepRecords, core.Result{"step": name, "output": out})
		state.StepHistory = append(state.StepHistory, name)
		state.Accumulated = mergeResults(state.Accumulated, out)

		s.saveCheckpoint(ctx, stepKey(task.ID(), i+1), state)

		if s.options.StepValidation {
			if valid, ok := out.Bool(core.IsValidKey); ok && !valid {
				s.logger.Warn("step reported invalid output, terminating chain",
					lg.StepKey, name, lg.TaskIDKey, task.ID())
				return core.Result{
					StatusKey:     core.StatusValidationFailed,
					"steps":       stepRecords,
					"failed_step": name,
				}, nil
			}
		}

		prev = out
	}

	var finalOutput core.Result
	if len(stepRecords) > 0 {
		finalOutput = prev
	}

	return core.Result{
		StatusKey:      core.StatusSuccess,
		"steps":        stepRecords,
		"final_output": finalOutput,
	}, nil
}

// stepInput derives the task passed to the next step: the original task
// merged with the previous output, or with the previous output nested under
// "extracted_data" when it is extraction-shaped.
func (s *Sequential) stepInput(task core.Task, prev core.Result) core.Task {
	input := task.Clone()
	if prev == nil {
		return input
	}

	if looksLikeExtraction(prev, s.options.ExtractionKeys) {
		input["extracted_data"] = prev
		return input
	}

	for k, v := range prev {
		if k == core.TaskIDKey {
			continue
		}
		input[k] = v
	}
	return input
}

func looksLikeExtraction(out core.Result, keys []string) bool {
	for _, k := range keys {
		if _, ok := out[k]; ok {
			return true
		}
	}
	return false
}

func stepKey(taskID string, n int) string {
	return fmt.Sprintf("%s_step_%d", taskID, n)
}

// sequentialResume restores the most recent checkpoint before running.
type sequentialResume struct {
	*Sequential
}

func (r *sequentialResume) run(ctx context.Context, task core.Task) (core.Result, error) {
	names := r.registry.Names()

	// Find the highest checkpointed step for this task.
	var state *core.WorkflowState
	from := 0
	for n := 1; n <= len(names); n++ {
		var candidate core.WorkflowState
		err := r.options.Checkpoints.Load(ctx, stepKey(task.ID(), n), &candidate)
		if err != nil {
			if errors.Is(err, checkpoint.ErrNotFound) {
				break
			}
			r.logger.Warn("checkpoint load failed", lg.CheckpointKey, stepKey(task.ID(), n), "error", err)
			break
		}
		state = &candidate
		from = n
	}

	if state == nil {
		return r.Sequential.run(ctx, task)
	}

	r.logger.Debug("resuming from checkpoint",
		lg.TaskIDKey, task.ID(), lg.StepKey, names[from-1])

	restored := make([]core.Result, 0, from)
	for _, name := range state.StepHistory {
		restored = append(restored, core.Result{"step": name, "restored": true})
	}

	return r.runFrom(ctx, task, from, state, restored)
}
