// Package config provides configuration loading and management for stepforge.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is the config file used when none is given.
var DefaultPath = filepath.Join(".stepforge", "config.yaml")

// EnvPrefix prefixes environment overrides, e.g. STEPFORGE_STORE_PATH.
const EnvPrefix = "STEPFORGE"

// Config is the root configuration.
type Config struct {
	Store  StoreConfig  `json:"store"  mapstructure:"store"`
	Output OutputConfig `json:"output" mapstructure:"output"`
}

// StoreConfig locates the compiled pipeline database.
type StoreConfig struct {
	Path string `json:"path" mapstructure:"path"`
	// Save persists every successful compilation.
	Save bool `json:"save" mapstructure:"save"`
}

// OutputConfig controls how compiled pipelines are written.
type OutputConfig struct {
	Format string `json:"format" mapstructure:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.path", filepath.Join(".stepforge", "stepforge.db"))
	v.SetDefault("store.save", false)
	v.SetDefault("output.format", "yaml")
}

// Load reads the config file at path (optional when missing and
// required is false), applies environment overrides and validates the
// result.
func Load(v *viper.Viper, path string, required bool) (Config, error) {
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	if err := v.ReadInConfig(); err != nil {
		if required || !isNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	// env values are untyped strings, so the schema only sees file settings
	if err := ValidateSettings(v.AllSettings()); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that environment overrides may have changed.
func (c Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	switch c.Output.Format {
	case "yaml", "json":
		return nil
	default:
		return fmt.Errorf("output.format must be yaml or json, got %q", c.Output.Format)
	}
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}
