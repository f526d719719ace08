// Package component compiles step instances into pipeline component specs.
package component

import (
	"errors"
	"fmt"
	"sort"

	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/metalagman/stepforge/internal/step"
)

var (
	// ErrUnknownOverride is returned when a materializer override names an
	// input the step does not declare.
	ErrUnknownOverride = errors.New("materializer override for undeclared input")
	// ErrNoMaterializer is returned when an input type lost its materializer.
	ErrNoMaterializer = errors.New("no materializer for input")
)

// Input is a bound artifact input of a component.
type Input struct {
	Name         string `json:"name"         yaml:"name"`
	Source       string `json:"source"       yaml:"source"`
	Producer     string `json:"producer"     yaml:"producer"`
	Materializer string `json:"materializer" yaml:"materializer"`
}

// Output is a declared artifact output of a component.
type Output struct {
	Name string            `json:"name" yaml:"name"`
	Type step.ArtifactType `json:"type" yaml:"type"`
}

// Spec is the compiled representation of a step instance.
type Spec struct {
	Name        string            `json:"name"                  yaml:"name"`
	Class       string            `json:"class"                 yaml:"class"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      []Input           `json:"inputs"                yaml:"inputs"`
	Parameters  map[string]string `json:"parameters"            yaml:"parameters"`
	Outputs     []Output          `json:"outputs"               yaml:"outputs"`

	channels map[string]*step.Channel
}

// ID returns the component id.
func (s *Spec) ID() string { return s.Name }

// Output returns the channel of the named output.
func (s *Spec) Output(name string) (*step.Channel, bool) {
	ch, ok := s.channels[name]
	return ch, ok
}

// Upstream returns the ids of the components this one consumes from,
// sorted and without duplicates.
func (s *Spec) Upstream() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, in := range s.Inputs {
		if in.Producer == "" || seen[in.Producer] {
			continue
		}
		seen[in.Producer] = true
		out = append(out, in.Producer)
	}
	sort.Strings(out)
	return out
}

// Compiler generates component constructors for step instances.
type Compiler struct {
	registry *materializer.Registry
}

// NewCompiler returns a Compiler resolving default materializers from reg.
func NewCompiler(reg *materializer.Registry) *Compiler {
	return &Compiler{registry: reg}
}

// Generate implements step.ComponentFactory.
func (c *Compiler) Generate(s *step.Step) (step.ComponentConstructor, error) {
	class := s.Class()
	for _, e := range class.InputSpec().Entries() {
		if _, ok := c.registry.Lookup(e.Declared); !ok {
			return nil, fmt.Errorf("%w: %q (%s)", ErrNoMaterializer, e.Name, e.Declared)
		}
	}

	return func(artifacts map[string]*step.Channel, params map[string]string) (step.Component, error) {
		overrides := s.Materializers()
		for name := range overrides {
			if !class.InputSpec().Has(name) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownOverride, name)
			}
		}

		spec := &Spec{
			Name:        s.Name(),
			Class:       class.Name(),
			Description: class.Description(),
			Inputs:      make([]Input, 0, class.InputSpec().Len()),
			Parameters:  make(map[string]string, len(params)),
			Outputs:     make([]Output, 0, class.OutputSpec().Len()),
			channels:    make(map[string]*step.Channel, class.OutputSpec().Len()),
		}
		for _, e := range class.InputSpec().Entries() {
			m, ok := overrides[e.Name]
			if !ok || m == nil {
				m, _ = c.registry.Lookup(e.Declared)
			}
			in := Input{Name: e.Name, Materializer: m.Name()}
			if ch := artifacts[e.Name]; ch != nil {
				in.Source = ch.Ref()
				in.Producer = ch.Producer
			}
			spec.Inputs = append(spec.Inputs, in)
		}
		for k, v := range params {
			spec.Parameters[k] = v
		}
		for _, e := range class.OutputSpec().Entries() {
			spec.Outputs = append(spec.Outputs, Output{Name: e.Name, Type: e.Type})
			spec.channels[e.Name] = &step.Channel{Producer: spec.Name, Output: e.Name, Type: e.Type}
		}
		return spec, nil
	}, nil
}
