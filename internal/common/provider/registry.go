// Package provider holds named factories for pluggable storage backends
// ("memory", "redis") so config can pick an implementation by name.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory builds a backend of type T from its dependencies P.
type Factory[T, P any] func(ctx context.Context, params P) (T, error)

// Registry is a thread-safe set of named factories for one backend interface.
type Registry[T, P any] struct {
	subsystem string
	mu        sync.RWMutex
	factories map[string]Factory[T, P]
}

// NewRegistry creates a Registry. subsystem appears in error messages.
func NewRegistry[T, P any](subsystem string) *Registry[T, P] {
	return &Registry[T, P]{
		subsystem: subsystem,
		factories: make(map[string]Factory[T, P]),
	}
}

// Register adds a named factory. It panics on duplicate names.
func (r *Registry[T, P]) Register(name string, f Factory[T, P]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("provider: %s backend %q already registered", r.subsystem, name))
	}
	r.factories[name] = f
}

// New instantiates the backend registered under name.
func (r *Registry[T, P]) New(ctx context.Context, name string, params P) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s provider: %q (available: %v)", r.subsystem, name, r.Available())
	}
	return f(ctx, params)
}

// Available returns the sorted registered names.
func (r *Registry[T, P]) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
