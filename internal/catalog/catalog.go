// Package catalog keeps the step classes available to pipeline definitions.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/metalagman/stepforge/internal/step"
)

var (
	// ErrDuplicateClass is returned when a class name is registered twice.
	ErrDuplicateClass = errors.New("step class already registered")
	// ErrUnknownClass is returned for lookups of unregistered classes.
	ErrUnknownClass = errors.New("unknown step class")
)

// Catalog maps class names to step classes.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]*step.Class
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{classes: make(map[string]*step.Class)}
}

// Register adds classes to the catalog.
func (c *Catalog) Register(classes ...*step.Class) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(classes))
	for _, class := range classes {
		if _, ok := c.classes[class.Name()]; ok || seen[class.Name()] {
			return fmt.Errorf("%w: %s", ErrDuplicateClass, class.Name())
		}
		seen[class.Name()] = true
	}
	for _, class := range classes {
		c.classes[class.Name()] = class
	}
	return nil
}

// Get returns the class registered under name.
func (c *Catalog) Get(name string) (*step.Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	class, ok := c.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return class, nil
}

// Names returns the registered class names in order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.classes))
	for name := range c.classes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Classes returns the registered classes ordered by name.
func (c *Catalog) Classes() []*step.Class {
	names := c.Names()
	out := make([]*step.Class, 0, len(names))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range names {
		out = append(out, c.classes[name])
	}
	return out
}
