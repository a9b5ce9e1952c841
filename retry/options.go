package retry

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/orchestral/conductor/metrics"
)

type Options struct {
	// MaxRetries is the number of retries after the initial attempt. Total
	// attempts = 1 + MaxRetries.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// ExponentialBase is the multiplier applied to the delay per attempt.
	ExponentialBase float64

	// MaxDelay caps the delay for any individual retry.
	MaxDelay time.Duration

	// RandomizationFactor controls jitter; each delay is picked uniformly
	// from [delay*(1-f), delay*(1+f)].
	RandomizationFactor float64

	// Clock drives the backoff delays. Tests inject a mock clock.
	Clock clock.Clock

	Logger *slog.Logger

	Metrics metrics.Client
}

var DefaultOptions = Options{
	MaxRetries:          3,
	BaseDelay:           100 * time.Millisecond,
	ExponentialBase:     2.0,
	MaxDelay:            10 * time.Second,
	RandomizationFactor: 0.5,
}

type Option func(*Options)

func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(o *Options) {
		o.BaseDelay = d
	}
}

func WithExponentialBase(base float64) Option {
	return func(o *Options) {
		o.ExponentialBase = base
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(o *Options) {
		o.MaxDelay = d
	}
}

func WithRandomizationFactor(f float64) Option {
	return func(o *Options) {
		o.RandomizationFactor = f
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
