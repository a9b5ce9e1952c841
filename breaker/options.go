package breaker

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/orchestral/conductor/metrics"
)

type Options struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold int

	// OpenTimeout is how long the breaker stays open before allowing a
	// half-open probe.
	OpenTimeout time.Duration

	// Clock drives the open timeout. Tests inject a mock clock.
	Clock clock.Clock

	Logger *slog.Logger

	Metrics metrics.Client
}

var DefaultOptions = Options{
	FailureThreshold: 5,
	OpenTimeout:      30 * time.Second,
}

type Option func(*Options)

func WithFailureThreshold(threshold int) Option {
	return func(o *Options) {
		o.FailureThreshold = threshold
	}
}

func WithOpenTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.OpenTimeout = timeout
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

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

func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Metrics == nil {
		options.Metrics = metrics.NewNoopClient()
	}

	return options
}
