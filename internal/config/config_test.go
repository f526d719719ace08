package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWhenFileIsOptional(t *testing.T) {
	t.Parallel()

	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".stepforge", "stepforge.db"), cfg.Store.Path)
	assert.False(t, cfg.Store.Save)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestLoadRequiredFileMissing(t *testing.T) {
	t.Parallel()

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `store:
  path: /var/lib/stepforge.db
  save: true
output:
  format: json
`)
	cfg, err := Load(viper.New(), path, true)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/stepforge.db", cfg.Store.Path)
	assert.True(t, cfg.Store.Save)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"output": {"format": "yaml"}, "store": {"save": true}}`)
	cfg, err := Load(viper.New(), path, true)
	require.NoError(t, err)
	assert.True(t, cfg.Store.Save)
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"unknown section": "agents:\n  plan: codex\n",
		"bad format":      "output:\n  format: toml\n",
		"bad save":        "store:\n  save: sometimes\n",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(viper.New(), writeFile(t, "config.yaml", content), true)
			require.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STEPFORGE_OUTPUT_FORMAT", "json")
	t.Setenv("STEPFORGE_STORE_SAVE", "true")

	cfg, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.True(t, cfg.Store.Save)
}

func TestLoadEnvOverrideIsValidated(t *testing.T) {
	t.Setenv("STEPFORGE_OUTPUT_FORMAT", "xml")

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
}
