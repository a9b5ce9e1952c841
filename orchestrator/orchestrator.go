// Package orchestrator implements the coordination patterns of the engine:
// sequential chains, hierarchical planner/specialist delegation, explicit
// state machines and parallel voting. Every pattern shares the same entry
// contract: register capabilities, call Execute with a task carrying a
// task_id, get back a result envelope with a status and a pattern-specific
// payload.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/core"
	"github.com/orchestral/conductor/internal/metrickeys"
	lg "github.com/orchestral/conductor/log"
	"github.com/orchestral/conductor/metrics"
)

// Result envelope keys shared by all patterns.
const (
	StatusKey      = "status"
	ExecutionIDKey = "execution_id"
	DurationMSKey  = "duration_ms"
)

// runner is the pattern-specific part of an orchestrator. The base handles
// validation, the execution log, tracing and envelope metadata; run does the
// actual coordination.
type runner interface {
	pattern() string
	run(ctx context.Context, task core.Task) (core.Result, error)
}

type base struct {
	registry *capability.Registry
	options  Options

	logger *slog.Logger
	tracer trace.Tracer

	mu           sync.Mutex
	executionLog []core.ExecutionLogEntry
}

func newBase(registry *capability.Registry, opts ...Option) *base {
	options := ApplyOptions(opts...)

	return &base{
		registry: registry,
		options:  options,
		logger:   options.Logger,
		tracer:   options.TracerProvider.Tracer("conductor"),
	}
}

// Registry returns the capability registry backing this orchestrator. It must
// not be modified while an Execute call is running.
func (b *base) Registry() *capability.Registry {
	return b.registry
}

// ExecutionLog returns a copy of the accumulated execution log. The log is
// append-only and cleared only when the orchestrator instance is discarded.
func (b *base) ExecutionLog() []core.ExecutionLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := make([]core.ExecutionLogEntry, len(b.executionLog))
	copy(entries, b.executionLog)
	return entries
}

// logStep appends to the execution log. It is the only way patterns record
// progress.
func (b *base) logStep(step, status string, output core.Result, stepErr error) {
	entry := core.ExecutionLogEntry{
		Step:      step,
		Status:    status,
		Output:    output,
		Timestamp: time.Now(),
	}
	if stepErr != nil {
		entry.Error = stepErr.Error()
	}

	b.mu.Lock()
	b.executionLog = append(b.executionLog, entry)
	b.mu.Unlock()

	if stepErr != nil {
		b.logger.Error("step failed", lg.StepKey, step, "error", stepErr)
	} else {
		b.logger.Debug("step completed", lg.StepKey, step)
	}

	b.options.Metrics.Counter(metrickeys.StepProcessed, metrics.Tags{
		metrickeys.Step:   step,
		metrickeys.Status: status,
	}, 1)
}

// execute is the template method every pattern's Execute goes through. It
// validates the task and registry, delegates to the pattern's run, and always
// appends a final execution-log entry with the outcome.
func (b *base) execute(ctx context.Context, task core.Task, r runner) (core.Result, error) {
	pattern := r.pattern()

	if task.ID() == "" {
		err := &ValidationError{Pattern: pattern, Reason: "task is missing a non-empty task_id"}
		b.logStep(pattern, core.StepFailure, nil, err)
		return nil, err
	}

	if b.registry.Len() == 0 {
		err := &ValidationError{Pattern: pattern, Reason: "no capabilities registered"}
		b.logStep(pattern, core.StepFailure, nil, err)
		return nil, err
	}

	executionID := uuid.NewString()
	logger := b.logger.With(
		lg.PatternKey, pattern,
		lg.TaskIDKey, task.ID(),
		lg.ExecutionIDKey, executionID,
	)

	ctx, span := b.tracer.Start(ctx, fmt.Sprintf("Execute: %s", pattern), trace.WithAttributes(
		attribute.String(lg.PatternKey, pattern),
		attribute.String(lg.TaskIDKey, task.ID()),
		attribute.String(lg.ExecutionIDKey, executionID),
	))
	defer span.End()

	b.options.Metrics.Counter(metrickeys.ExecuteStarted, metrics.Tags{metrickeys.Pattern: pattern}, 1)
	timer := metrics.Timer(b.options.Metrics, metrickeys.ExecuteDuration, metrics.Tags{metrickeys.Pattern: pattern})
	defer timer.Stop()

	logger.Debug("executing task")
	start := time.Now()

	result, err := r.run(ctx, task)
	duration := time.Since(start)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		b.logStep(pattern, core.StepFailure, nil, err)
		b.options.Metrics.Counter(metrickeys.ExecuteFinished, metrics.Tags{
			metrickeys.Pattern: pattern,
			metrickeys.Status:  core.StepFailure,
		}, 1)
		logger.Error("execution failed", "error", err, lg.DurationKey, duration.Milliseconds())
		return nil, err
	}

	result[ExecutionIDKey] = executionID
	result[DurationMSKey] = duration.Milliseconds()

	b.logStep(pattern, core.StepSuccess, result, nil)
	b.options.Metrics.Counter(metrickeys.ExecuteFinished, metrics.Tags{
		metrickeys.Pattern: pattern,
		metrickeys.Status:  core.StepSuccess,
	}, 1)
	logger.Debug("execution finished",
		lg.StatusKey, result[StatusKey],
		lg.DurationKey, duration.Milliseconds(),
	)

	return result, nil
}

// invoke calls a capability, converting errors and panics into a
// CapabilityError naming the failed step. A panicking capability never takes
// down the coordinating flow.
func (b *base) invoke(ctx context.Context, name string, c capability.Capability, task core.Task) (result core.Result, err error) {
	ctx, span := b.tracer.Start(ctx, fmt.Sprintf("Invoke: %s", name), trace.WithAttributes(
		attribute.String(lg.StepKey, name),
		attribute.String(lg.TaskIDKey, task.ID()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = &CapabilityError{
				Step:       name,
				Err:        fmt.Errorf("panic: %v", r),
				Stacktrace: string(goerrors.Wrap(r, 2).Stack()),
			}
			result = nil
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	result, err = c.Invoke(ctx, task)
	if err != nil {
		err = &CapabilityError{Step: name, Err: err}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return result, nil
}

// saveCheckpoint persists state under key. Checkpoint failures are surfaced
// through the execution log and do not abort the run.
func (b *base) saveCheckpoint(ctx context.Context, key string, state *core.WorkflowState) {
	if err := b.options.Checkpoints.Save(ctx, key, state); err != nil {
		b.logger.Warn("checkpoint save failed", lg.CheckpointKey, key, "error", err)
		b.logStep(fmt.Sprintf("checkpoint:%s", key), core.StepFailure, nil, err)
	}
}

// mergeResults merges b over a into a fresh map. Either side may be nil.
func mergeResults(a, b core.Result) core.Result {
	merged := make(core.Result, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}
