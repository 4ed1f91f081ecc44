package schema

import (
	"reflect"
	"sync"
)

// DefaultDataSource is the well-known name models are bound to unless a
// DataSourcer override says otherwise.
const DefaultDataSource = "default"

// Registry caches resolved Metadata per declared type. Resolution is lazy:
// the first Lookup for a type resolves it, every later call returns the
// cached value. Concurrent first use may resolve redundantly, but only one
// result is ever published.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Metadata
}

// NewRegistry creates an empty metadata registry
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type]*Metadata)}
}

// Lookup resolves metadata for a model value or reflect.Type, caching the
// result. All callers converge on a single Metadata instance per type.
func (r *Registry) Lookup(model any) (*Metadata, error) {
	t, err := normalize(model)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	meta, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	// Resolution is pure, so doing it outside the lock is safe; the write
	// below keeps the first published value on a race.
	resolved, err := resolveType(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if meta, ok := r.byType[t]; ok {
		return meta, nil
	}
	r.byType[t] = resolved
	return resolved, nil
}

// Len returns the number of cached model types
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// defaultRegistry backs the package-level Lookup used by the root package
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Lookup resolves metadata through the process-wide registry
func Lookup(model any) (*Metadata, error) {
	return defaultRegistry.Lookup(model)
}
