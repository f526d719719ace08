package step

import (
	"fmt"
	"sort"

	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/rs/zerolog/log"
)

// Step is an instance of a Class bound to its configuration.
type Step struct {
	class         *Class
	name          string
	params        map[string]string
	materializers map[string]materializer.Materializer
	construct     ComponentConstructor
	component     Component
}

// New creates a step instance. Only Kwargs arguments are accepted; the
// config value, if the class declares one, is looked up among them.
func (c *Class) New(args ...any) (*Step, error) {
	kwargs, err := mergeKwargs(args)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", c.name, err)
	}

	s := &Step{class: c, name: c.name, params: map[string]string{}}
	if c.spec.Config != nil {
		params, err := c.bindConfig(kwargs)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", c.name, err)
		}
		s.params = params
	}

	if c.factory == nil {
		return nil, fmt.Errorf("step %s: %w", c.name, ErrNoComponentFactory)
	}
	construct, err := c.factory.Generate(s)
	if err != nil {
		return nil, fmt.Errorf("step %s: generate component: %w", c.name, err)
	}
	s.construct = construct
	return s, nil
}

func (c *Class) bindConfig(kwargs Kwargs) (map[string]string, error) {
	keyword, cfg, err := findConfig(kwargs, c.spec.Config)
	if err != nil {
		return nil, err
	}
	fields, err := flattenConfig(cfg)
	if err != nil {
		return nil, err
	}
	params, err := serializeConfig(fields)
	if err != nil {
		log.Debug().Err(err).Str("step", c.name).Str("keyword", keyword).Msg("config serialization failed")
		return nil, err
	}
	if c.configSchema != "" {
		if err := validateConfigSchema(c.configSchema, fields); err != nil {
			return nil, err
		}
	}
	for field := range params {
		if c.spec.Inputs.Has(field) {
			return nil, fmt.Errorf("%w: %q", ErrNameCollision, field)
		}
	}
	return params, nil
}

// Class returns the class the step was created from.
func (s *Step) Class() *Class { return s.class }

// Name returns the instance name. It defaults to the class name.
func (s *Step) Name() string { return s.name }

// Named sets the instance name.
func (s *Step) Named(name string) *Step {
	if name != "" {
		s.name = name
	}
	return s
}

// Params returns a copy of the serialized configuration.
func (s *Step) Params() map[string]string {
	out := make(map[string]string, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

// WithMaterializers overrides the materializer used for the given inputs.
func (s *Step) WithMaterializers(m map[string]materializer.Materializer) *Step {
	s.materializers = make(map[string]materializer.Materializer, len(m))
	for k, v := range m {
		s.materializers[k] = v
	}
	return s
}

// Materializers returns the per-input overrides.
func (s *Step) Materializers() map[string]materializer.Materializer {
	out := make(map[string]materializer.Materializer, len(s.materializers))
	for k, v := range s.materializers {
		out[k] = v
	}
	return out
}

// Component returns the component built by the last Call, nil before it.
func (s *Step) Component() Component { return s.component }

// Call binds artifacts to the step inputs, builds the component and returns
// its outputs in declaration order. The artifact names must match the input
// spec exactly.
func (s *Step) Call(artifacts map[string]*Channel) (Handle, error) {
	inputs := s.class.spec.Inputs
	declared := inputs.Names()

	supplied := make([]string, 0, len(artifacts))
	for name := range artifacts {
		supplied = append(supplied, name)
	}
	sort.Strings(supplied)
	for _, name := range supplied {
		if !inputs.Has(name) {
			return nil, &BindingError{Step: s.name, Artifact: name, Declared: declared, Err: ErrUnexpectedArtifact}
		}
	}
	for _, name := range declared {
		if artifacts[name] == nil {
			return nil, &BindingError{Step: s.name, Artifact: name, Declared: declared, Err: ErrMissingArtifact}
		}
	}

	bound := make(map[string]*Channel, len(artifacts))
	for k, v := range artifacts {
		bound[k] = v
	}
	comp, err := s.construct(bound, s.Params())
	if err != nil {
		return nil, fmt.Errorf("step %s: build component: %w", s.name, err)
	}
	s.component = comp

	outputs := make(Channels, 0, s.class.spec.Outputs.Len())
	for _, name := range s.class.spec.Outputs.Names() {
		ch, ok := comp.Output(name)
		if !ok || ch == nil {
			return nil, fmt.Errorf("step %s: %w: %q", s.name, ErrMissingOutput, name)
		}
		outputs = append(outputs, ch)
	}

	log.Debug().Str("step", s.name).Str("component", comp.ID()).Int("outputs", len(outputs)).Msg("step connected")
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}
