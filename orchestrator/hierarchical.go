package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/core"
	lg "github.com/orchestral/conductor/log"
)

// PlannerCapability is the reserved registry name the hierarchical pattern
// requires. The planner runs first and decides which specialists handle which
// subtasks.
const PlannerCapability = "planner"

// Hierarchical delegates a task to specialists chosen by a planner. The
// planner's output must carry a "tasks" list of {specialist, input} entries;
// entries naming an unregistered specialist are skipped. Registered
// specialists run concurrently with per-branch failure isolation, and the
// result list always follows the planner's task order, never completion
// order.
type Hierarchical struct {
	*base
}

func NewHierarchical(registry *capability.Registry, opts ...Option) *Hierarchical {
	return &Hierarchical{base: newBase(registry, opts...)}
}

// Execute runs the planner and the planned specialists. Statuses: "success"
// (no specialist failed), "partial_success" (at least one success and one
// failure), "failure" (zero successes with at least one failure).
func (h *Hierarchical) Execute(ctx context.Context, task core.Task) (core.Result, error) {
	return h.execute(ctx, task, h)
}

func (h *Hierarchical) pattern() string {
	return "hierarchical"
}

type plannedTask struct {
	specialist string
	input      any
}

type specialistAssignment struct {
	idx        int
	specialist string
	input      any
	capability capability.Capability
}

func (h *Hierarchical) run(ctx context.Context, task core.Task) (core.Result, error) {
	planner, ok := h.registry.Get(PlannerCapability)
	if !ok {
		return nil, &ValidationError{
			Pattern: h.pattern(),
			Reason:  fmt.Sprintf("no capability registered under the reserved name %q", PlannerCapability),
		}
	}

	plan, err := h.invoke(ctx, PlannerCapability, planner, task)
	if err != nil {
		h.logStep(PlannerCapability, core.StepFailure, nil, err)
		return nil, err
	}
	h.logStep(PlannerCapability, core.StepSuccess, plan, nil)

	planned, verr := h.parsePlan(plan)
	if verr != nil {
		return nil, verr
	}

	// Keep only entries whose specialist is registered, preserving planner
	// order. Unknown specialists are skipped, not failed.
	assignments := make([]specialistAssignment, 0, len(planned))
	for _, pt := range planned {
		c, ok := h.registry.Get(pt.specialist)
		if !ok {
			h.logger.Debug("skipping unregistered specialist",
				lg.SpecialistKey, pt.specialist, lg.TaskIDKey, task.ID())
			continue
		}
		assignments = append(assignments, specialistAssignment{
			idx:        len(assignments),
			specialist: pt.specialist,
			input:      pt.input,
			capability: c,
		})
	}

	// Fan out. Each branch writes into its own slot so the joined results
	// stay in planner order regardless of completion timing.
	outputs := make([]core.Result, len(assignments))
	failures := make([]error, len(assignments))

	var wg sync.WaitGroup
	for _, a := range assignments {
		wg.Add(1)
		go func(a specialistAssignment) {
			defer wg.Done()

			out, err := h.invoke(ctx, a.specialist, a.capability, h.specialistTask(task, a.specialist, a.input))
			if err != nil {
				failures[a.idx] = err
				return
			}
			outputs[a.idx] = out
		}(a)
	}
	wg.Wait()

	entries := make([]core.Result, 0, len(assignments))
	errList := make([]string, 0)
	successOutputs := make([]core.Result, 0, len(assignments))

	for i, a := range assignments {
		if err := failures[i]; err != nil {
			h.logStep(a.specialist, core.StepFailure, nil, err)
			errList = append(errList, err.Error())
			entries = append(entries, core.Result{
				"specialist": a.specialist,
				"status":     "error",
				"error":      err.Error(),
			})
			continue
		}

		out := outputs[i]
		h.logStep(a.specialist, core.StepSuccess, out, nil)
		successOutputs = append(successOutputs, out)
		entries = append(entries, core.Result{
			"specialist": a.specialist,
			"status":     "success",
			"output":     out,
		})
	}

	status := core.StatusSuccess
	switch {
	case len(errList) == 0:
		status = core.StatusSuccess
	case len(successOutputs) > 0:
		status = core.StatusPartialSuccess
	default:
		status = core.StatusFailure
	}

	return core.Result{
		StatusKey:            status,
		"specialist_results": entries,
		"final_decision":     aggregateDecision(successOutputs),
		"errors":             errList,
	}, nil
}

// parsePlan validates the planner output: a "tasks" list whose entries are
// mappings with "specialist" and "input" keys. Any deviation is a validation
// error raised before any specialist runs.
func (h *Hierarchical) parsePlan(plan core.Result) ([]plannedTask, *ValidationError) {
	raw, ok := plan["tasks"]
	if !ok {
		return nil, &ValidationError{Pattern: h.pattern(), Reason: `planner output is missing a "tasks" list`}
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []map[string]any:
		for _, e := range v {
			items = append(items, e)
		}
	case []core.Result:
		for _, e := range v {
			items = append(items, map[string]any(e))
		}
	default:
		return nil, &ValidationError{Pattern: h.pattern(), Reason: `planner output "tasks" is not a list`}
	}

	planned := make([]plannedTask, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{
				Pattern: h.pattern(),
				Reason:  fmt.Sprintf("planner task %d is not a mapping", i),
			}
		}

		specialist, _ := entry["specialist"].(string)
		if specialist == "" {
			return nil, &ValidationError{
				Pattern: h.pattern(),
				Reason:  fmt.Sprintf(`planner task %d is missing a "specialist" name`, i),
			}
		}

		input, ok := entry["input"]
		if !ok {
			return nil, &ValidationError{
				Pattern: h.pattern(),
				Reason:  fmt.Sprintf(`planner task %d is missing an "input"`, i),
			}
		}

		planned = append(planned, plannedTask{specialist: specialist, input: input})
	}

	return planned, nil
}

// specialistTask derives the task a specialist receives. Mapping inputs are
// flattened into the subtask, anything else is passed under "input". The
// subtask id is derived from the parent's so log entries stay attributable.
func (h *Hierarchical) specialistTask(parent core.Task, specialist string, input any) core.Task {
	st := core.Task{core.TaskIDKey: fmt.Sprintf("%s_%s", parent.ID(), specialist)}

	switch in := input.(type) {
	case map[string]any:
		for k, v := range in {
			if k == core.TaskIDKey {
				continue
			}
			st[k] = v
		}
	case core.Task:
		for k, v := range in {
			if k == core.TaskIDKey {
				continue
			}
			st[k] = v
		}
	default:
		st["input"] = input
	}

	return st
}

// aggregateDecision combines successful specialist outputs: fraud scores and
// confidences are averaged, risk factors deduplicated in first-seen order.
// The fraud flag uses a strict > 0.5 boundary.
func aggregateDecision(outputs []core.Result) core.Result {
	var scoreSum float64
	scoreCount := 0
	var confSum float64
	confCount := 0
	var riskFactors []string
	seen := make(map[string]bool)

	for _, out := range outputs {
		if f, ok := out.Float(core.FraudScoreKey); ok {
			scoreSum += f
			scoreCount++
		}
		if f, ok := out.Float(core.ConfidenceKey); ok {
			confSum += f
			confCount++
		}
		for _, rf := range out.Strings(core.RiskFactorsKey) {
			if !seen[rf] {
				seen[rf] = true
				riskFactors = append(riskFactors, rf)
			}
		}
	}

	score := 0.0
	if scoreCount > 0 {
		score = scoreSum / float64(scoreCount)
	}

	decision := core.Result{
		core.FraudScoreKey: score,
		core.IsFraudKey:    score > 0.5,
	}
	if confCount > 0 {
		decision[core.ConfidenceKey] = confSum / float64(confCount)
	}
	if len(riskFactors) > 0 {
		decision[core.RiskFactorsKey] = riskFactors
	}

	return decision
}
