package step

import (
	"fmt"
	"reflect"
)

// ArtifactType is the artifact kind recorded in input and output specs.
type ArtifactType string

// BaseArtifact is the generic artifact every materializable value maps to.
const BaseArtifact ArtifactType = "BaseArtifact"

// Registry answers whether a type can be materialized.
type Registry interface {
	IsRegistered(t reflect.Type) bool
}

// Entry is one named artifact of a spec.
type Entry struct {
	Name string
	Type ArtifactType
	// Declared is the Go type from the signature.
	Declared reflect.Type
}

// ArtifactSpec is an ordered, read-only mapping of artifact names.
type ArtifactSpec struct {
	entries []Entry
	index   map[string]int
}

func (s *ArtifactSpec) add(name string, declared reflect.Type) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	s.index[name] = len(s.entries)
	s.entries = append(s.entries, Entry{Name: name, Type: BaseArtifact, Declared: declared})
}

// Len returns the number of artifacts.
func (s ArtifactSpec) Len() int { return len(s.entries) }

// Has reports whether name is part of the spec.
func (s ArtifactSpec) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Get returns the entry for name.
func (s ArtifactSpec) Get(name string) (Entry, bool) {
	i, ok := s.index[name]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Names returns artifact names in declaration order.
func (s ArtifactSpec) Names() []string {
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Name)
	}
	return out
}

// Entries returns a copy of the entries in declaration order.
func (s ArtifactSpec) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Spec is the classified interface of a step class.
type Spec struct {
	Inputs  ArtifactSpec
	Outputs ArtifactSpec
	// Config is nil when the step takes no configuration.
	Config reflect.Type
}

// Classify splits the parameters of sig into config and artifact inputs and
// derives the output spec from its return declaration.
func Classify(sig Signature, reg Registry) (Spec, error) {
	var spec Spec
	if reg == nil {
		return spec, fmt.Errorf("%w: no materializer registry", ErrInvalidSignature)
	}

	seen := make(map[string]bool, len(sig.Params))
	for _, p := range sig.Params {
		if err := checkParam(p, seen, "parameter"); err != nil {
			return Spec{}, err
		}
		switch {
		case isConfigType(p.Type):
			if spec.Config != nil {
				return Spec{}, fmt.Errorf("%w: %q (%s) conflicts with %s", ErrMultipleConfigs, p.Name, p.Type, spec.Config)
			}
			spec.Config = p.Type
		case reg.IsRegistered(p.Type):
			spec.Inputs.add(p.Name, p.Type)
		default:
			return Spec{}, fmt.Errorf("%w: parameter %q has type %s, which is neither a step config nor has a registered materializer",
				ErrUnclassifiableParam, p.Name, p.Type)
		}
	}

	switch ret := sig.Return.(type) {
	case nil:
	case Output:
		outSeen := make(map[string]bool, len(ret))
		for _, o := range ret {
			if err := checkParam(o, outSeen, "output"); err != nil {
				return Spec{}, err
			}
			if !reg.IsRegistered(o.Type) {
				return Spec{}, fmt.Errorf("%w: output %q returns %s", ErrUnregisteredReturn, o.Name, o.Type)
			}
			spec.Outputs.add(o.Name, o.Type)
		}
	case Single:
		if ret.Type == nil {
			return Spec{}, fmt.Errorf("%w: return type is nil", ErrInvalidSignature)
		}
		if !reg.IsRegistered(ret.Type) {
			return Spec{}, fmt.Errorf("%w: step returns %s", ErrUnregisteredReturn, ret.Type)
		}
		spec.Outputs.add(SingleOutputName, ret.Type)
	default:
		return Spec{}, fmt.Errorf("%w: unsupported return declaration %T", ErrInvalidSignature, sig.Return)
	}
	return spec, nil
}

func checkParam(p Param, seen map[string]bool, kind string) error {
	if p.Name == "" {
		return fmt.Errorf("%w: %s name is empty", ErrInvalidSignature, kind)
	}
	if seen[p.Name] {
		return fmt.Errorf("%w: %s %q declared twice", ErrInvalidSignature, kind, p.Name)
	}
	seen[p.Name] = true
	if p.Type == nil {
		return fmt.Errorf("%w: %s %q has no type", ErrInvalidSignature, kind, p.Name)
	}
	return nil
}
