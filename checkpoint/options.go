package checkpoint

import (
	"log/slog"

	"github.com/orchestral/conductor/converter"
	"github.com/orchestral/conductor/metrics"
)

type Options struct {
	// Converter serializes checkpoint payloads. Defaults to the JSON
	// converter.
	Converter converter.Converter

	Logger *slog.Logger

	Metrics metrics.Client
}

type Option func(*Options)

func WithConverter(c converter.Converter) Option {
	return func(o *Options) {
		o.Converter = c
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
	var options Options

	for _, opt := range opts {
		opt(&options)
	}

	if options.Converter == nil {
		options.Converter = converter.DefaultConverter
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Metrics == nil {
		options.Metrics = metrics.NewNoopClient()
	}

	return options
}
