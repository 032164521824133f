package pipeline

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoBackend is returned when neither the requested engine nor the fallback is registered.
var ErrNoBackend = errors.New("no backend")

// Router maps engine names to backends. Unknown engines resolve to the
// fallback engine when one is registered under that name.
type Router[T any] struct {
	backends map[string]T
	fallback string
}

func NewRouter[T any](backends map[string]T, fallback string) *Router[T] {
	if backends == nil {
		backends = map[string]T{}
	}
	return &Router[T]{backends: backends, fallback: fallback}
}

// Route returns the backend for engine, or the fallback's.
func (r *Router[T]) Route(engine string) (T, error) {
	for _, name := range []string{engine, r.fallback} {
		if backend, ok := r.backends[name]; ok {
			return backend, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("engine %q: %w", engine, ErrNoBackend)
}

// Has reports whether engine itself is registered, ignoring the fallback.
func (r *Router[T]) Has(engine string) bool {
	_, ok := r.backends[engine]
	return ok
}

// Engines returns the registered engine names in sorted order.
func (r *Router[T]) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for k := range r.backends {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
