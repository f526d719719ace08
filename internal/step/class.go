// Package step defines pipeline steps: typed units of computation whose
// artifact inputs, outputs and configuration are declared up front and
// compiled into pipeline components.
package step

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/rs/zerolog/log"
)

// Args are the values handed to a processor, keyed by parameter name.
type Args map[string]any

// Results are the values returned by a processor, keyed by output name.
type Results map[string]any

// Processor holds the core logic of a step.
type Processor interface {
	Process(ctx context.Context, args Args) (Results, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, args Args) (Results, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, args Args) (Results, error) {
	return f(ctx, args)
}

// Class is a defined step type. Its specs never change after Define.
type Class struct {
	name         string
	description  string
	sig          Signature
	spec         Spec
	proc         Processor
	registry     Registry
	factory      ComponentFactory
	configSchema string
}

// Option configures a Class.
type Option func(*Class)

// WithRegistry sets the materializer registry used to classify the signature.
func WithRegistry(r Registry) Option {
	return func(c *Class) { c.registry = r }
}

// WithComponentFactory sets the factory generating components for instances.
func WithComponentFactory(f ComponentFactory) Option {
	return func(c *Class) { c.factory = f }
}

// WithConfigSchema sets a JSON schema the serialized config must satisfy.
func WithConfigSchema(schema string) Option {
	return func(c *Class) { c.configSchema = schema }
}

// WithDescription sets a human readable description.
func WithDescription(d string) Option {
	return func(c *Class) { c.description = d }
}

// Define classifies sig and returns the resulting step class. Without
// WithRegistry the built-in materializers are used.
func Define(name string, sig Signature, proc Processor, opts ...Option) (*Class, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: step name is empty", ErrInvalidSignature)
	}
	if proc == nil {
		return nil, fmt.Errorf("step %s: %w", name, ErrNoProcessor)
	}
	c := &Class{name: name, sig: copySignature(sig), proc: proc}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = materializer.Default()
	}

	log.Debug().Str("step", name).Int("params", len(sig.Params)).Msg("registering step class")
	spec, err := Classify(c.sig, c.registry)
	if err != nil {
		return nil, fmt.Errorf("step %s: %w", name, err)
	}
	c.spec = spec

	ev := log.Debug().
		Str("step", name).
		Strs("inputs", spec.Inputs.Names()).
		Strs("outputs", spec.Outputs.Names())
	if spec.Config != nil {
		ev = ev.Str("config", spec.Config.String())
	}
	ev.Msg("step class registered")
	return c, nil
}

func copySignature(sig Signature) Signature {
	out := Signature{Params: append([]Param(nil), sig.Params...), Return: sig.Return}
	if o, ok := sig.Return.(Output); ok {
		out.Return = append(Output(nil), o...)
	}
	return out
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Description returns the class description.
func (c *Class) Description() string { return c.description }

// Signature returns a copy of the declared signature.
func (c *Class) Signature() Signature { return copySignature(c.sig) }

// InputSpec returns the artifact inputs.
func (c *Class) InputSpec() ArtifactSpec { return c.spec.Inputs }

// OutputSpec returns the artifact outputs.
func (c *Class) OutputSpec() ArtifactSpec { return c.spec.Outputs }

// ConfigType returns the config type, or nil.
func (c *Class) ConfigType() reflect.Type { return c.spec.Config }

// ConfigSchema returns the JSON schema of the config, if any.
func (c *Class) ConfigSchema() string { return c.configSchema }

// Processor returns the step logic.
func (c *Class) Processor() Processor { return c.proc }

// ProcessorName names the processor implementation: the function for a
// ProcessorFunc, the Go type otherwise.
func (c *Class) ProcessorName() string {
	if f, ok := c.proc.(ProcessorFunc); ok {
		if fn := runtime.FuncForPC(reflect.ValueOf(f).Pointer()); fn != nil {
			name := fn.Name()
			return name[strings.LastIndex(name, "/")+1:]
		}
	}
	return fmt.Sprintf("%T", c.proc)
}
