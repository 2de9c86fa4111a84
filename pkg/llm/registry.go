package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds a backend from options.
type Constructor func(Options) (Backend, error)

// Registry maps backend names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name. Names are
// case-insensitive.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[strings.ToLower(name)] = c
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named backend.
func (r *Registry) New(name string, opts Options) (*Active, error) {
	key := strings.ToLower(name)
	r.mu.RLock()
	c, ok := r.constructors[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownBackend, name, strings.Join(r.Names(), ", "))
	}

	b, err := c(opts)
	if err != nil {
		return nil, fmt.Errorf("creating %s backend: %w", key, err)
	}
	return &Active{Name: key, Backend: b}, nil
}

// Active is the backend in use together with its registry name.
type Active struct {
	Name string
	Backend
}
