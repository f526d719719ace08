package config

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidSettings is returned when settings do not match the schema.
var ErrInvalidSettings = errors.New("config schema validation failed")

// ValidateSettings validates raw settings against the embedded JSON schema.
// Violations are reported sorted by field.
func ValidateSettings(settings map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	sort.Strings(violations)
	return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(violations, "; "))
}
