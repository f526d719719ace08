package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/metalagman/stepforge/internal/catalog"
	"github.com/metalagman/stepforge/internal/component"
	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/metalagman/stepforge/internal/step"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnexpectedConfig is returned when a step without a config type is
	// given one.
	ErrUnexpectedConfig = errors.New("step class takes no config")
	// ErrUnresolvedInput is returned for input references that do not name
	// an output of an earlier step.
	ErrUnresolvedInput = errors.New("input reference cannot be resolved")
	// ErrUnknownMaterializer is returned for overrides naming an
	// unregistered materializer.
	ErrUnknownMaterializer = errors.New("unknown materializer")
	// ErrUnsupportedFormat is returned by Encode for unknown formats.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// StepError wraps a failure compiling one step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Compiled is a pipeline whose steps have been turned into components.
type Compiled struct {
	Pipeline    string            `json:"pipeline"              yaml:"pipeline"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Components  []*component.Spec `json:"components"            yaml:"components"`
}

// Compile instantiates and connects every step of def in order.
func Compile(def Definition, cat *catalog.Catalog, reg *materializer.Registry) (*Compiled, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	out := &Compiled{Pipeline: def.Name, Description: def.Description}
	produced := make(map[string]map[string]*step.Channel, len(def.Steps))

	for _, sd := range def.Steps {
		spec, outputs, err := compileStep(sd, cat, reg, produced)
		if err != nil {
			return nil, &StepError{Step: sd.Name, Err: err}
		}
		produced[sd.Name] = outputs
		out.Components = append(out.Components, spec)
		log.Debug().
			Str("pipeline", def.Name).
			Str("step", sd.Name).
			Str("class", sd.Class).
			Strs("upstream", spec.Upstream()).
			Msg("step compiled")
	}
	return out, nil
}

func compileStep(sd StepDefinition, cat *catalog.Catalog, reg *materializer.Registry, produced map[string]map[string]*step.Channel) (*component.Spec, map[string]*step.Channel, error) {
	class, err := cat.Get(sd.Class)
	if err != nil {
		return nil, nil, err
	}

	kwargs := step.Kwargs{}
	switch cfgType := class.ConfigType(); {
	case cfgType != nil:
		cfg, err := decodeConfig(sd.Config, cfgType)
		if err != nil {
			return nil, nil, err
		}
		kwargs["config"] = cfg
	case len(sd.Config) > 0:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnexpectedConfig, sd.Class)
	}

	inst, err := class.New(kwargs)
	if err != nil {
		return nil, nil, err
	}
	inst.Named(sd.Name)

	if len(sd.Materializers) > 0 {
		overrides := make(map[string]materializer.Materializer, len(sd.Materializers))
		for input, name := range sd.Materializers {
			m, ok := reg.ByName(name)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %q for input %q", ErrUnknownMaterializer, name, input)
			}
			overrides[input] = m
		}
		inst.WithMaterializers(overrides)
	}

	artifacts := make(map[string]*step.Channel, len(sd.Inputs))
	for input, ref := range sd.Inputs {
		ch, err := resolve(ref, produced)
		if err != nil {
			return nil, nil, fmt.Errorf("input %q: %w", input, err)
		}
		artifacts[input] = ch
	}

	h, err := inst.Call(artifacts)
	if err != nil {
		return nil, nil, err
	}
	spec, ok := inst.Component().(*component.Spec)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected component type %T", inst.Component())
	}

	outputs := map[string]*step.Channel{}
	switch h := h.(type) {
	case *step.Channel:
		outputs[h.Output] = h
	case step.Channels:
		for _, ch := range h {
			outputs[ch.Output] = ch
		}
	}
	return spec, outputs, nil
}

func decodeConfig(raw map[string]any, cfgType reflect.Type) (any, error) {
	isPtr := cfgType.Kind() == reflect.Pointer
	base := cfgType
	if isPtr {
		base = cfgType.Elem()
	}
	target := reflect.New(base)

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Squash:      true,
		ErrorUnused: true,
		Result:      target.Interface(),
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if isPtr {
		return target.Interface(), nil
	}
	return target.Elem().Interface(), nil
}

func resolve(ref string, produced map[string]map[string]*step.Channel) (*step.Channel, error) {
	producer, output, hasOutput := strings.Cut(ref, ".")
	outputs, ok := produced[producer]
	if !ok {
		return nil, fmt.Errorf("%w: %q: no earlier step named %q", ErrUnresolvedInput, ref, producer)
	}
	if !hasOutput {
		if len(outputs) != 1 {
			return nil, fmt.Errorf("%w: %q: step has %d outputs, name one of %v", ErrUnresolvedInput, ref, len(outputs), outputNames(outputs))
		}
		for _, ch := range outputs {
			return ch, nil
		}
	}
	ch, ok := outputs[output]
	if !ok {
		return nil, fmt.Errorf("%w: %q: outputs are %v", ErrUnresolvedInput, ref, outputNames(outputs))
	}
	return ch, nil
}

func outputNames(outputs map[string]*step.Channel) []string {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckFormat reports whether Encode supports format. An empty format
// means yaml.
func CheckFormat(format string) error {
	switch format {
	case "", "yaml", "json":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Encode writes the compiled pipeline as "yaml" or "json".
func (c *Compiled) Encode(w io.Writer, format string) error {
	if err := CheckFormat(format); err != nil {
		return err
	}
	switch format {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	}
	return nil
}
