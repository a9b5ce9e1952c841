package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/orchestral/conductor/internal/metrickeys"
	"github.com/orchestral/conductor/metrics"
)

// Set manages one breaker per logical target. Breakers are created on first
// use with the set's options and evicted after sitting idle for the
// configured TTL, so a long-running process does not accumulate breakers for
// targets it no longer calls.
type Set struct {
	mu sync.Mutex

	c       *ttlcache.Cache[string, *CircuitBreaker]
	options []Option
	mc      metrics.Client
}

// NewSet creates a breaker set. size bounds the number of live breakers,
// idleTTL is how long an unused breaker is kept. The given options are
// applied to every breaker the set creates.
func NewSet(size int, idleTTL time.Duration, opts ...Option) *Set {
	options := ApplyOptions(opts...)

	c := ttlcache.New(
		ttlcache.WithCapacity[string, *CircuitBreaker](uint64(size)),
		ttlcache.WithTTL[string, *CircuitBreaker](idleTTL),
	)

	mc := options.Metrics

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, *CircuitBreaker]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		}

		mc.Counter(metrickeys.BreakerSetEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &Set{
		c:       c,
		options: opts,
		mc:      mc,
	}
}

// ForTarget returns the breaker for the given target, creating it if needed.
func (s *Set) ForTarget(target string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.c.Get(target); item != nil {
		return item.Value()
	}

	cb := New(target, s.options...)
	s.c.Set(target, cb, ttlcache.DefaultTTL)

	s.mc.Gauge(metrickeys.BreakerSetSize, metrics.Tags{}, int64(s.c.Len()))

	return cb
}

// StartEviction runs the background TTL eviction loop until ctx is canceled.
func (s *Set) StartEviction(ctx context.Context) {
	go s.c.Start()

	<-ctx.Done()

	s.c.Stop()
}
