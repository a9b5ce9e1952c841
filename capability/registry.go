package capability

import (
	"context"
	"sync"

	"github.com/orchestral/conductor/core"
)

// Registry is an ordered, name-keyed collection of capabilities.
// Registration order is preserved and drives execution order in the
// sequential and voting patterns. Re-registering a name overwrites the
// capability in place, keeping its original position.
//
// The registry must not be modified while an Execute call is running.
type Registry struct {
	mu sync.Mutex

	order        []string
	capabilities map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]Capability),
	}
}

// Register stores c under name. An existing registration with the same name
// is overwritten and keeps its position in the order.
func (r *Registry) Register(name string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.capabilities[name]; !ok {
		r.order = append(r.order, name)
	}
	r.capabilities[name] = c
}

// RegisterFunc registers a plain function as a capability.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, task core.Task) (core.Result, error)) {
	r.Register(name, Func(fn))
}

// Get returns the capability registered under name.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.capabilities[name]
	return c, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.order)
}
