package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"github.com/orchestral/conductor/breaker"
	"github.com/orchestral/conductor/capability"
	"github.com/orchestral/conductor/checkpoint/sqlitestore"
	"github.com/orchestral/conductor/core"
	"github.com/orchestral/conductor/orchestrator"
	"github.com/orchestral/conductor/retry"
)

func main() {
	ctx := context.Background()

	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("conductor sample"),
		attribute.String("environment", "sample"),
	)

	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		panic(err)
	}

	tp := trace.NewTracerProvider(
		trace.WithSyncer(exp),
		trace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())

	store, err := sqlitestore.NewInMemoryStore()
	if err != nil {
		panic(err)
	}
	defer store.Close()

	task := core.Task{
		"task_id":     uuid.NewString(),
		"amount":      2400.00,
		"merchant":    "ACME Imports",
		"description": "wire transfer to new payee",
	}

	runSequential(ctx, tp, store, task)
	runHierarchical(ctx, tp, task)
	runVoting(ctx, tp, task)
	runStateMachine(ctx, tp, store, task)
}

func runSequential(ctx context.Context, tp *trace.TracerProvider, store *sqlitestore.Store, task core.Task) {
	r := capability.NewRegistry()
	r.RegisterFunc("extract", extractDetails)
	r.Register("analyze", capability.WithRetry(capability.Func(analyzePatterns),
		retry.WithMaxRetries(2), retry.WithBaseDelay(50*time.Millisecond)))
	r.RegisterFunc("decide", decide)

	o := orchestrator.NewSequential(r,
		orchestrator.WithTracerProvider(tp),
		orchestrator.WithCheckpoints(store),
		orchestrator.WithStepValidation(),
	)

	res, err := o.Execute(ctx, task.Clone())
	if err != nil {
		log.Fatal(err)
	}
	log.Println("sequential:", res["status"], res["final_output"])
}

func runHierarchical(ctx context.Context, tp *trace.TracerProvider, task core.Task) {
	r := capability.NewRegistry()
	r.RegisterFunc(orchestrator.PlannerCapability, planAssignments)
	r.RegisterFunc("velocity", velocityCheck)
	r.RegisterFunc("geo", geoCheck)
	r.Register("watchlist", capability.WithBreaker(capability.Func(watchlistCheck),
		breaker.New("watchlist-api", breaker.WithFailureThreshold(3))))

	o := orchestrator.NewHierarchical(r, orchestrator.WithTracerProvider(tp))

	res, err := o.Execute(ctx, task.Clone())
	if err != nil {
		log.Fatal(err)
	}
	log.Println("hierarchical:", res["status"], res["final_decision"])
}

func runVoting(ctx context.Context, tp *trace.TracerProvider, task core.Task) {
	r := capability.NewRegistry()
	r.RegisterFunc("model-a", scoreAround(0.62))
	r.RegisterFunc("model-b", scoreAround(0.58))
	r.RegisterFunc("model-c", scoreAround(0.65))

	o := orchestrator.NewVoting(r, 3, orchestrator.WeightedAverage,
		orchestrator.WithTracerProvider(tp),
		orchestrator.WithOutlierRejection(),
	)

	res, err := o.Execute(ctx, task.Clone())
	if err != nil {
		log.Fatal(err)
	}
	log.Println("voting:", res["status"], res["consensus_decision"])
}

func runStateMachine(ctx context.Context, tp *trace.TracerProvider, store *sqlitestore.Store, task core.Task) {
	states := []string{"received", "screened", "reviewed", "closed"}

	sm, err := orchestrator.NewStateMachine(capability.NewRegistry(), states, "received", nil,
		orchestrator.WithTracerProvider(tp),
		orchestrator.WithCheckpoints(store),
	)
	if err != nil {
		panic(err)
	}

	if err := sm.RegisterStateHandler("screened", capability.Func(analyzePatterns)); err != nil {
		panic(err)
	}
	if err := sm.RegisterStateHandler("reviewed", capability.Func(decide)); err != nil {
		panic(err)
	}
	if err := sm.RegisterInvariant("reviewed", scoreInRange); err != nil {
		panic(err)
	}

	res, err := sm.Execute(ctx, task.Clone())
	if err != nil {
		log.Fatal(err)
	}
	log.Println("state machine:", res["final_state"], res["state_history"])
}

func extractDetails(ctx context.Context, task core.Task) (core.Result, error) {
	return core.Result{
		"transaction_id": task.ID(),
		"amount":         task["amount"],
		"merchant":       task["merchant"],
		"is_valid":       true,
	}, nil
}

func analyzePatterns(ctx context.Context, task core.Task) (core.Result, error) {
	amount, _ := core.Result(task).Float("amount")

	score := 0.2
	if amount > 1000 {
		score = 0.6
	}

	return core.Result{
		"fraud_score": score,
		"is_valid":    true,
	}, nil
}

func decide(ctx context.Context, task core.Task) (core.Result, error) {
	score, _ := core.Result(task).Float("fraud_score")

	return core.Result{
		"is_fraud":   score > 0.5,
		"confidence": 0.9,
	}, nil
}

func planAssignments(ctx context.Context, task core.Task) (core.Result, error) {
	input := map[string]any{
		"amount":   task["amount"],
		"merchant": task["merchant"],
	}

	return core.Result{
		"tasks": []any{
			map[string]any{"specialist": "velocity", "input": input},
			map[string]any{"specialist": "geo", "input": input},
			map[string]any{"specialist": "watchlist", "input": input},
		},
	}, nil
}

func velocityCheck(ctx context.Context, task core.Task) (core.Result, error) {
	return core.Result{
		"fraud_score":  0.7,
		"confidence":   0.8,
		"risk_factors": []string{"high_velocity"},
	}, nil
}

func geoCheck(ctx context.Context, task core.Task) (core.Result, error) {
	return core.Result{
		"fraud_score": 0.3,
		"confidence":  0.6,
	}, nil
}

func watchlistCheck(ctx context.Context, task core.Task) (core.Result, error) {
	return core.Result{
		"fraud_score":  0.9,
		"confidence":   0.95,
		"risk_factors": []string{"watchlist_match"},
	}, nil
}

func scoreAround(base float64) capability.Func {
	return func(ctx context.Context, task core.Task) (core.Result, error) {
		return core.Result{
			"fraud_score": base + (rand.Float64()-0.5)*0.05,
			"confidence":  0.7,
		}, nil
	}
}

func scoreInRange(accumulated core.Result) error {
	if score, ok := accumulated.Float("fraud_score"); ok && (score < 0 || score > 1) {
		return fmt.Errorf("fraud_score %v out of range", score)
	}
	return nil
}
