// Package materializer keeps track of the strategies that can persist a Go
// type as a pipeline artifact.
package materializer

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	// ErrDuplicateName is returned when a materializer name is registered twice.
	ErrDuplicateName = errors.New("materializer already registered")
	// ErrTypeClaimed is returned when a type already has a materializer.
	ErrTypeClaimed = errors.New("type already has a materializer")
	// ErrInvalid is returned for materializers without a name or types.
	ErrInvalid = errors.New("invalid materializer")
)

// Materializer describes a strategy for reading and writing artifacts of
// the associated types.
type Materializer interface {
	Name() string
	Types() []reflect.Type
}

type descriptor struct {
	name  string
	types []reflect.Type
}

// New returns a Materializer handling the given types.
func New(name string, types ...reflect.Type) Materializer {
	return &descriptor{name: name, types: append([]reflect.Type(nil), types...)}
}

func (d *descriptor) Name() string { return d.name }

func (d *descriptor) Types() []reflect.Type {
	return append([]reflect.Type(nil), d.types...)
}

// Registry maps Go types to their materializer.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]Materializer
	byName map[string]Materializer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]Materializer),
		byName: make(map[string]Materializer),
	}
}

// Register adds m for all of its types. Nothing is registered on error.
func (r *Registry) Register(m Materializer) error {
	if m == nil || m.Name() == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	types := m.Types()
	if len(types) == 0 {
		return fmt.Errorf("%w: %q handles no types", ErrInvalid, m.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[m.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, m.Name())
	}
	for _, t := range types {
		if t == nil {
			return fmt.Errorf("%w: %q has a nil type", ErrInvalid, m.Name())
		}
		if owner, ok := r.byType[t]; ok {
			return fmt.Errorf("%w: %s is handled by %q", ErrTypeClaimed, t, owner.Name())
		}
	}
	for _, t := range types {
		r.byType[t] = m
	}
	r.byName[m.Name()] = m
	return nil
}

// IsRegistered reports whether t has a materializer.
func (r *Registry) IsRegistered(t reflect.Type) bool {
	_, ok := r.Lookup(t)
	return ok
}

// Lookup returns the materializer for t.
func (r *Registry) Lookup(t reflect.Type) (Materializer, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byType[t]
	return m, ok
}

// ByName returns the materializer registered under name.
func (r *Registry) ByName(name string) (Materializer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byName[name]
	return m, ok
}

// Types returns every registered type ordered by its string form.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	out := make([]reflect.Type, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Materializers returns every registered materializer ordered by name.
func (r *Registry) Materializers() []Materializer {
	r.mu.RLock()
	out := make([]Materializer, 0, len(r.byName))
	for _, m := range r.byName {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
