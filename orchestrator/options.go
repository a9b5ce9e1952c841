package orchestrator

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/orchestral/conductor/checkpoint"
	"github.com/orchestral/conductor/metrics"
)

// DefaultExtractionKeys are the domain fields that mark a step output as an
// extraction result. When a previous step's output carries any of these keys
// the sequential pattern nests it under "extracted_data" instead of
// flattening it into the next step's task, to avoid key collisions.
var DefaultExtractionKeys = []string{
	"transaction_id",
	"amount",
	"merchant",
	"account_number",
	"entities",
}

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Checkpoints persists workflow state between steps. Defaults to the
	// noop store, which disables checkpointing.
	Checkpoints checkpoint.Store

	// StepValidation enables early termination in the sequential pattern
	// when a step output carries is_valid == false.
	StepValidation bool

	// ExtractionKeys marks step outputs as extraction results (sequential
	// pattern).
	ExtractionKeys []string

	// OutlierRejection drops statistical outliers from the vote set before
	// consensus (voting pattern).
	OutlierRejection bool

	// OutlierSensitivity is the |z-score| above which a vote is rejected.
	OutlierSensitivity float64
}

var DefaultOptions = Options{
	ExtractionKeys:     DefaultExtractionKeys,
	OutlierSensitivity: 1.5,
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithCheckpoints(store checkpoint.Store) Option {
	return func(o *Options) {
		o.Checkpoints = store
	}
}

func WithStepValidation() Option {
	return func(o *Options) {
		o.StepValidation = true
	}
}

func WithExtractionKeys(keys ...string) Option {
	return func(o *Options) {
		o.ExtractionKeys = keys
	}
}

func WithOutlierRejection() Option {
	return func(o *Options) {
		o.OutlierRejection = true
	}
}

func WithOutlierSensitivity(sensitivity float64) Option {
	return func(o *Options) {
		o.OutlierSensitivity = sensitivity
	}
}

func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Metrics == nil {
		options.Metrics = metrics.NewNoopClient()
	}

	if options.TracerProvider == nil {
		options.TracerProvider = trace.NewNoopTracerProvider()
	}

	if options.Checkpoints == nil {
		options.Checkpoints = checkpoint.NewNoopStore()
	}

	return options
}
