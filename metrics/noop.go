package metrics

import "time"

type noopClient struct{}

// NewNoopClient returns a metrics client that discards all measurements.
func NewNoopClient() Client {
	return &noopClient{}
}

var _ Client = (*noopClient)(nil)

func (*noopClient) Counter(name string, tags Tags, value float64) {
}

// Distribution implements Client
func (*noopClient) Distribution(name string, tags Tags, value float64) {
}

// Gauge implements Client
func (*noopClient) Gauge(name string, tags Tags, value int64) {
}

// Timing implements Client
func (*noopClient) Timing(name string, tags Tags, duration time.Duration) {
}

// WithTags implements Client
func (nc *noopClient) WithTags(tags Tags) Client {
	return nc
}
