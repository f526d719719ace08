package step

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Config marks a struct as step configuration. Embed BaseConfig to
// implement it.
type Config interface {
	stepConfig()
}

// BaseConfig is embedded by step configuration structs.
type BaseConfig struct{}

func (BaseConfig) stepConfig() {}

var configInterface = reflect.TypeFor[Config]()

func isConfigType(t reflect.Type) bool {
	return t != nil && t.Implements(configInterface)
}

// Kwargs are the keyword arguments of a step instance.
type Kwargs map[string]any

func mergeKwargs(args []any) (Kwargs, error) {
	out := Kwargs{}
	for i, arg := range args {
		kw, ok := arg.(Kwargs)
		if !ok {
			return nil, fmt.Errorf("%w: argument %d is %T", ErrPositionalArgs, i, arg)
		}
		for k, v := range kw {
			if _, dup := out[k]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateKeyword, k)
			}
			out[k] = v
		}
	}
	return out, nil
}

// matchesConfig reports whether v is a value of cfgType or a pointer to one.
func matchesConfig(v any, cfgType reflect.Type) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t == cfgType {
		return true
	}
	if t.Kind() == reflect.Pointer && t.Elem() == cfgType {
		return true
	}
	return cfgType.Kind() == reflect.Pointer && cfgType.Elem() == t
}

func findConfig(kwargs Kwargs, cfgType reflect.Type) (string, any, error) {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		found []string
		value any
	)
	for _, k := range keys {
		if matchesConfig(kwargs[k], cfgType) {
			found = append(found, k)
			value = kwargs[k]
			continue
		}
		log.Debug().Str("keyword", k).Str("config_type", cfgType.String()).Msg("ignoring non-config keyword argument")
	}
	switch len(found) {
	case 0:
		return "", nil, fmt.Errorf("%w: expected a %s keyword argument", ErrConfigMissing, cfgType)
	case 1:
		return found[0], value, nil
	default:
		return "", nil, fmt.Errorf("%w: keywords [%s] are all %s", ErrAmbiguousConfig, strings.Join(found, ", "), cfgType)
	}
}

// ConfigField is a top-level field of a config struct.
type ConfigField struct {
	// Name is the mapstructure key, or the Go field name without a tag.
	Name  string
	Type  reflect.Type
	index []int
}

// ConfigFields lists the fields of a config struct. Embedded structs and
// fields tagged ",squash" contribute their own fields; nested structs are
// kept whole.
func ConfigFields(t reflect.Type) []ConfigField {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return appendConfigFields(nil, t, nil)
}

func appendConfigFields(out []ConfigField, t reflect.Type, parent []int) []ConfigField {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		index := append(append([]int(nil), parent...), i)
		if (f.Anonymous || hasTagOption(opts, "squash")) && f.Type.Kind() == reflect.Struct {
			out = appendConfigFields(out, f.Type, index)
			continue
		}
		if name == "" {
			name = f.Name
		}
		out = append(out, ConfigField{Name: name, Type: f.Type, index: index})
	}
	return out
}

func hasTagOption(opts, want string) bool {
	for _, opt := range strings.Split(opts, ",") {
		if opt == want {
			return true
		}
	}
	return false
}

// flattenConfig maps every config field name to its Go value.
func flattenConfig(cfg any) (map[string]any, error) {
	rv := reflect.ValueOf(cfg)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: config is a nil pointer", ErrConfigMissing)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: config must be a struct, got %s", ErrUnserializableConfig, rv.Type())
	}

	fields := map[string]any{}
	for _, f := range ConfigFields(rv.Type()) {
		if _, dup := fields[f.Name]; dup {
			return nil, fmt.Errorf("%w: field %q is declared twice", ErrUnserializableConfig, f.Name)
		}
		fields[f.Name] = rv.FieldByIndex(f.index).Interface()
	}
	return fields, nil
}

// serializeConfig JSON-encodes every field. The result is nil on any error.
func serializeConfig(fields map[string]any) (map[string]string, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	params := make(map[string]string, len(fields))
	for _, k := range names {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrUnserializableConfig, k, err)
		}
		params[k] = string(data)
	}
	return params, nil
}

func validateConfigSchema(schema string, fields map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewGoLoader(fields))
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
}
