package step

import "reflect"

// SingleOutputName is the output name used for a step returning one value.
const SingleOutputName = "output"

// Param is a named, typed entry of a step signature.
type Param struct {
	Name string
	Type reflect.Type
}

// P declares a parameter named name of type T.
func P[T any](name string) Param {
	return Param{Name: name, Type: reflect.TypeFor[T]()}
}

// Return is the return declaration of a step: Single or Output.
type Return interface {
	isReturn()
}

// Single declares one unnamed return value.
type Single struct {
	Type reflect.Type
}

func (Single) isReturn() {}

// Returns declares a single return value of type T.
func Returns[T any]() Single {
	return Single{Type: reflect.TypeFor[T]()}
}

// Output declares named return values in order.
type Output []Param

func (Output) isReturn() {}

// Named declares a multi-output return.
func Named(outputs ...Param) Output {
	return Output(outputs)
}

// Signature describes the processing function of a step. A nil Return
// means the step produces no artifacts.
type Signature struct {
	Params []Param
	Return Return
}
