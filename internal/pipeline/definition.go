// Package pipeline compiles YAML pipeline definitions into component specs.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition is returned for malformed pipeline definitions.
var ErrInvalidDefinition = errors.New("invalid pipeline definition")

// Definition is a pipeline as written by users.
type Definition struct {
	Name        string           `json:"name"                  yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []StepDefinition `json:"steps"                 yaml:"steps"`
}

// StepDefinition instantiates one step class.
type StepDefinition struct {
	Name   string         `json:"name"             yaml:"name"`
	Class  string         `json:"class"            yaml:"class"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// Inputs maps artifact inputs to "step.output" references. A bare step
	// name refers to a step with a single output.
	Inputs map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	// Materializers maps artifact inputs to materializer names.
	Materializers map[string]string `json:"materializers,omitempty" yaml:"materializers,omitempty"`
}

// Parse decodes and validates a YAML definition. Unknown fields are rejected.
func Parse(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode pipeline: %w", err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Load reads and parses the definition at path.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read pipeline: %w", err)
	}
	return Parse(data)
}

// Validate checks the structure of the definition.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: pipeline %s has no steps", ErrInvalidDefinition, d.Name)
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, s := range d.Steps {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: step %d has no name", ErrInvalidDefinition, i)
		case strings.Contains(s.Name, "."):
			return fmt.Errorf("%w: step name %q must not contain '.'", ErrInvalidDefinition, s.Name)
		case seen[s.Name]:
			return fmt.Errorf("%w: step %q defined twice", ErrInvalidDefinition, s.Name)
		case s.Class == "":
			return fmt.Errorf("%w: step %q has no class", ErrInvalidDefinition, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
