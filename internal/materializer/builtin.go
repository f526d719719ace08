package materializer

import "reflect"

const (
	// BuiltinName handles primitive values and plain collections.
	BuiltinName = "builtin"
	// BytesName handles raw byte payloads.
	BytesName = "bytes"
)

// Default returns a new registry holding the built-in materializers.
func Default() *Registry {
	r := NewRegistry()
	builtins := []Materializer{
		New(BuiltinName,
			reflect.TypeFor[string](),
			reflect.TypeFor[bool](),
			reflect.TypeFor[int](),
			reflect.TypeFor[int64](),
			reflect.TypeFor[float64](),
			reflect.TypeFor[[]string](),
			reflect.TypeFor[[]int](),
			reflect.TypeFor[[]float64](),
			reflect.TypeFor[map[string]any](),
			reflect.TypeFor[[]any](),
		),
		New(BytesName, reflect.TypeFor[[]byte]()),
	}
	for _, m := range builtins {
		if err := r.Register(m); err != nil {
			// built-in sets never overlap
			panic(err)
		}
	}
	return r
}
