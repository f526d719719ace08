package step

import (
	"errors"
	"fmt"
	"strings"
)

// Definition-time errors.
var (
	ErrInvalidSignature    = errors.New("invalid step signature")
	ErrMultipleConfigs     = errors.New("only one config type is allowed per step")
	ErrUnclassifiableParam = errors.New("parameter is neither a config nor a materializable type")
	ErrUnregisteredReturn  = errors.New("return type has no registered materializer")
	ErrNoProcessor         = errors.New("step has no processor")
)

// Construction-time errors.
var (
	ErrPositionalArgs       = errors.New("step instances accept keyword arguments only")
	ErrDuplicateKeyword     = errors.New("keyword argument given more than once")
	ErrConfigMissing        = errors.New("step config is declared but was not supplied")
	ErrAmbiguousConfig      = errors.New("more than one step config was supplied")
	ErrUnserializableConfig = errors.New("step config cannot be serialized")
	ErrInvalidConfig        = errors.New("step config does not match its schema")
	ErrNameCollision        = errors.New("config field shadows an artifact input")
	ErrNoComponentFactory   = errors.New("step class has no component factory")
)

// Call-time errors.
var (
	ErrUnexpectedArtifact = errors.New("artifact is not defined in the step input signature")
	ErrMissingArtifact    = errors.New("artifact is defined in the step input signature but not connected")
	ErrMissingOutput      = errors.New("component does not expose a declared output")
)

// BindingError reports an artifact binding that does not match the input
// spec of a step.
type BindingError struct {
	Step     string
	Artifact string
	Declared []string
	Err      error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("step %s: %v: %q (declared: [%s])", e.Step, e.Err, e.Artifact, strings.Join(e.Declared, ", "))
}

func (e *BindingError) Unwrap() error {
	return e.Err
}
