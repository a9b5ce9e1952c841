package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/checkpoint"
	"github.com/orchestral/conductor/core"
)

func TestSequential_ChainInRegistrationOrder(t *testing.T) {
	r := capability.NewRegistry()
	r.Register("A", echo(core.Result{"x": 1}))
	r.Register("B", echo(core.Result{"x": 2}))
	r.Register("C", echo(core.Result{"x": 3}))

	o := NewSequential(r)

	res, err := o.Execute(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)

	require.Equal(t, core.StatusSuccess, res[StatusKey])

	steps := res["steps"].([]core.Result)
	require.Len(t, steps, 3)
	require.Equal(t, "A", steps[0]["step"])
	require.Equal(t, "B", steps[1]["step"])
	require.Equal(t, "C", steps[2]["step"])

	require.Equal(t, core.Result{"x": 3}, res["final_output"])
}

func TestSequential_PassesPreviousOutputToNextStep(t *testing.T) {
	var secondInput core.Task

	r := capability.NewRegistry()
	r.Register("first", echo(core.Result{"score": 0.4}))
	r.RegisterFunc("second", func(ctx context.Context, task core.Task) (core.Result, error) {
		secondInput = task
		return core.Result{"done": true}, nil
	})

	o := NewSequential(r)

	_, err := o.Execute(context.Background(), core.Task{"task_id": "T1", "amount": 100})
	require.NoError(t, err)

	require.Equal(t, "T1", secondInput.ID())
	require.Equal(t, 100, secondInput["amount"])
	require.Equal(t, 0.4, secondInput["score"])
}

func TestSequential_NestsExtractionOutput(t *testing.T) {
	var secondInput core.Task

	extraction := core.Result{"transaction_id": "tx-9", "amount": 250.0}

	r := capability.NewRegistry()
	r.Register("extract", echo(extraction))
	r.RegisterFunc("analyze", func(ctx context.Context, task core.Task) (core.Result, error) {
		secondInput = task
		return core.Result{"fraud_score": 0.2}, nil
	})

	o := NewSequential(r)

	_, err := o.Execute(context.Background(), core.Task{"task_id": "T1", "amount": 100})
	require.NoError(t, err)

	// The extraction result is nested, not flattened, so the original task
	// fields are not clobbered.
	require.Equal(t, 100, secondInput["amount"])
	require.Equal(t, extraction, secondInput["extracted_data"])
}

func TestSequential_StepValidationTerminatesEarly(t *testing.T) {
	calls := []string{}

	record := func(name string, out core.Result) capability.Func {
		return func(ctx context.Context, task core.Task) (core.Result, error) {
			calls = append(calls, name)
			return out, nil
		}
	}

	r := capability.NewRegistry()
	r.Register("a", record("a", core.Result{"is_valid": true}))
	r.Register("b", record("b", core.Result{"is_valid": false}))
	r.Register("c", record("c", core.Result{"is_valid": true}))

	o := NewSequential(r, WithStepValidation())

	res, err := o.Execute(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)

	require.Equal(t, core.StatusValidationFailed, res[StatusKey])
	require.Equal(t, "b", res["failed_step"])
	require.Equal(t, []string{"a", "b"}, calls)
	require.Len(t, res["steps"].([]core.Result), 2)
}

func TestSequential_StepFailureIsFatal(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	r := capability.NewRegistry()
	r.Register("a", echo(core.Result{"x": 1}))
	r.Register("b", failing(boom))
	r.RegisterFunc("c", func(ctx context.Context, task core.Task) (core.Result, error) {
		ran = true
		return core.Result{}, nil
	})

	o := NewSequential(r)

	_, err := o.Execute(context.Background(), core.Task{"task_id": "T1"})

	var cerr *CapabilityError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "b", cerr.Step)
	require.ErrorIs(t, err, boom)
	require.False(t, ran)
}

func TestSequential_CheckpointsEveryStep(t *testing.T) {
	dir := t.TempDir()

	r := capability.NewRegistry()
	r.Register("a", echo(core.Result{"x": 1}))
	r.Register("b", echo(core.Result{"y": 2}))

	o := NewSequential(r, WithCheckpoints(checkpoint.NewFileStore(dir)))

	_, err := o.Execute(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)

	for _, name := range []string{"T1_step_1.json", "T1_step_2.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	var state core.WorkflowState
	store := checkpoint.NewFileStore(dir)
	require.NoError(t, store.Load(context.Background(), "T1_step_2", &state))
	require.Equal(t, []string{"a", "b"}, state.StepHistory)
	require.Equal(t, core.Result{"x": 1.0, "y": 2.0}, state.Accumulated)
}

func TestSequential_CheckpointFailureDoesNotAbort(t *testing.T) {
	r := capability.NewRegistry()
	r.Register("a", echo(core.Result{"x": 1}))

	o := NewSequential(r, WithCheckpoints(&failingStore{}))

	res, err := o.Execute(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)
	require.Equal(t, core.StatusSuccess, res[StatusKey])

	// The failure is surfaced through the execution log.
	var found bool
	for _, e := range o.ExecutionLog() {
		if e.Status == core.StepFailure {
			found = true
		}
	}
	require.True(t, found)
}

func TestSequential_ResumeSkipsCheckpointedSteps(t *testing.T) {
	dir := t.TempDir()
	calls := []string{}

	record := func(name string, out core.Result) capability.Func {
		return func(ctx context.Context, task core.Task) (core.Result, error) {
			calls = append(calls, name)
			return out, nil
		}
	}

	newOrchestrator := func() *Sequential {
		r := capability.NewRegistry()
		r.Register("a", record("a", core.Result{"x": 1}))
		r.Register("b", record("b", core.Result{"y": 2}))
		r.Register("c", record("c", core.Result{"z": 3}))
		return NewSequential(r, WithCheckpoints(checkpoint.NewFileStore(dir)))
	}

	// First run checkpoints steps a and b, then a fresh orchestrator resumes.
	first := newOrchestrator()
	_, err := first.Execute(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, calls)

	// Remove the last checkpoint to simulate a run that died before step c.
	require.NoError(t, os.Remove(filepath.Join(dir, "T1_step_3.json")))

	calls = nil
	second := newOrchestrator()
	res, err := second.Resume(context.Background(), core.Task{"task_id": "T1"})
	require.NoError(t, err)

	require.Equal(t, []string{"c"}, calls)
	require.Equal(t, core.StatusSuccess, res[StatusKey])
	require.Len(t, res["steps"].([]core.Result), 3)
}

type failingStore struct{}

func (*failingStore) Save(ctx context.Context, key string, state any) error {
	return &checkpoint.IOError{Op: "save", Key: key, Err: errors.New("disk full")}
}

func (*failingStore) Load(ctx context.Context, key string, vptr any) error {
	return checkpoint.ErrNotFound
}

func (*failingStore) Delete(ctx context.Context, key string) error {
	return nil
}
