package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/metalagman/stepforge/internal/catalog"
	"github.com/metalagman/stepforge/internal/component"
	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/metalagman/stepforge/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const trainingPipeline = `name: training
description: fit and score a linear model
steps:
  - name: load
    class: csv_importer
    config:
      path: data/houses.csv
  - name: split
    class: splitter
    config:
      test_fraction: 0.2
      seed: 42
    inputs:
      dataset: load
  - name: fit
    class: trainer
    config:
      target: price
      epochs: 100
      learning_rate: 0.01
    inputs:
      train: split.train
  - name: score
    class: evaluator
    inputs:
      model: fit.output
      test: split.test
    materializers:
      test: dataset
`

func env(t *testing.T) (*catalog.Catalog, *materializer.Registry) {
	t.Helper()
	reg := materializer.Default()
	cat, err := catalog.Builtin(reg, component.NewCompiler(reg))
	require.NoError(t, err)
	return cat, reg
}

func TestParseAndCompile(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte(trainingPipeline))
	require.NoError(t, err)
	require.Len(t, def.Steps, 4)

	cat, reg := env(t)
	compiled, err := Compile(def, cat, reg)
	require.NoError(t, err)

	assert.Equal(t, "training", compiled.Pipeline)
	require.Len(t, compiled.Components, 4)

	split := compiled.Components[1]
	assert.Equal(t, "split", split.Name)
	assert.Equal(t, []component.Input{{Name: "dataset", Source: "load.output", Producer: "load", Materializer: "dataset"}}, split.Inputs)
	assert.Equal(t, map[string]string{"test_fraction": "0.2", "seed": "42"}, split.Parameters)

	fit := compiled.Components[2]
	assert.Equal(t, "split.train", fit.Inputs[0].Source)
	assert.Equal(t, `"price"`, fit.Parameters["target"])

	score := compiled.Components[3]
	assert.Equal(t, []string{"fit", "split"}, score.Upstream())
	assert.Empty(t, score.Parameters)
	assert.Equal(t, []component.Output{{Name: "metrics", Type: step.BaseArtifact}}, score.Outputs)
}

func TestCompiledEncode(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte(trainingPipeline))
	require.NoError(t, err)
	cat, reg := env(t)
	compiled, err := Compile(def, cat, reg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, compiled.Encode(&buf, "yaml"))
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "training", doc["pipeline"])
	assert.Len(t, doc["components"], 4)

	buf.Reset()
	require.NoError(t, compiled.Encode(&buf, "json"))
	var decoded Compiled
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Components, 4)
	assert.Equal(t, "fit", decoded.Components[2].Name)

	buf.Reset()
	require.ErrorIs(t, compiled.Encode(&buf, "toml"), ErrUnsupportedFormat)
	assert.Zero(t, buf.Len())
}

func TestCheckFormat(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "yaml", "json"} {
		require.NoError(t, CheckFormat(format), format)
	}
	require.ErrorIs(t, CheckFormat("xml"), ErrUnsupportedFormat)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(trainingPipeline), 0o644))
	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "training", def.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no name":        "steps: [{name: a, class: trainer}]",
		"no steps":       "name: p",
		"unnamed step":   "name: p\nsteps: [{class: trainer}]",
		"dotted name":    "name: p\nsteps: [{name: a.b, class: trainer}]",
		"duplicate step": "name: p\nsteps: [{name: a, class: trainer}, {name: a, class: trainer}]",
		"no class":       "name: p\nsteps: [{name: a}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(doc))
			require.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}

	_, err := Parse([]byte("name: p\nsteps: [{name: a, class: trainer, retries: 3}]"))
	require.Error(t, err, "unknown fields are rejected")
}

func TestCompileReportsStepErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
		step string
		err  error
	}{
		{
			name: "unknown class",
			doc:  "name: p\nsteps: [{name: a, class: nope}]",
			step: "a",
			err:  catalog.ErrUnknownClass,
		},
		{
			name: "config for config-less class",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: evaluator, config: {foo: 1}, inputs: {model: a, test: a}}`,
			step: "b",
			err:  ErrUnexpectedConfig,
		},
		{
			name: "missing input",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: splitter, config: {test_fraction: 0.5}}`,
			step: "b",
			err:  step.ErrMissingArtifact,
		},
		{
			name: "extra input",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: splitter, config: {test_fraction: 0.5}, inputs: {dataset: a, labels: a}}`,
			step: "b",
			err:  step.ErrUnexpectedArtifact,
		},
		{
			name: "forward reference",
			doc: `name: p
steps:
  - {name: b, class: splitter, config: {test_fraction: 0.5}, inputs: {dataset: a}}
  - {name: a, class: csv_importer, config: {path: x.csv}}`,
			step: "b",
			err:  ErrUnresolvedInput,
		},
		{
			name: "ambiguous bare reference",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: splitter, config: {test_fraction: 0.5}, inputs: {dataset: a}}
  - {name: c, class: trainer, config: {target: y, epochs: 1, learning_rate: 0.1}, inputs: {train: b}}`,
			step: "c",
			err:  ErrUnresolvedInput,
		},
		{
			name: "unknown output",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: splitter, config: {test_fraction: 0.5}, inputs: {dataset: a.result}}`,
			step: "b",
			err:  ErrUnresolvedInput,
		},
		{
			name: "schema violation",
			doc:  "name: p\nsteps: [{name: a, class: csv_importer, config: {path: ''}}]",
			step: "a",
			err:  step.ErrInvalidConfig,
		},
		{
			name: "unknown materializer",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: splitter, config: {test_fraction: 0.5}, inputs: {dataset: a}, materializers: {dataset: parquet}}`,
			step: "b",
			err:  ErrUnknownMaterializer,
		},
		{
			name: "override for undeclared input",
			doc: `name: p
steps:
  - {name: a, class: csv_importer, config: {path: x.csv}}
  - {name: b, class: splitter, config: {test_fraction: 0.5}, inputs: {dataset: a}, materializers: {labels: dataset}}`,
			step: "b",
			err:  component.ErrUnknownOverride,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			def, err := Parse([]byte(tc.doc))
			require.NoError(t, err)
			cat, reg := env(t)

			_, err = Compile(def, cat, reg)
			require.ErrorIs(t, err, tc.err)
			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tc.step, stepErr.Step)
		})
	}
}

func TestCompileRejectsUnknownConfigKeys(t *testing.T) {
	t.Parallel()

	def, err := Parse([]byte("name: p\nsteps: [{name: a, class: csv_importer, config: {path: x.csv, sep: ','}}]"))
	require.NoError(t, err)
	cat, reg := env(t)
	_, err = Compile(def, cat, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sep")
}

func TestDecodeConfigPointerType(t *testing.T) {
	t.Parallel()

	cfg, err := decodeConfig(map[string]any{"target": "y", "epochs": 3, "learning_rate": 0.5}, reflectPtr())
	require.NoError(t, err)
	tc, ok := cfg.(*catalog.TrainerConfig)
	require.True(t, ok)
	assert.Equal(t, 3, tc.Epochs)
	assert.InDelta(t, 0.5, tc.LearningRate, 1e-9)

	cfg, err = decodeConfig(nil, reflectPtr().Elem())
	require.NoError(t, err)
	assert.Equal(t, catalog.TrainerConfig{}, cfg)
}

func reflectPtr() reflect.Type {
	return reflect.TypeFor[*catalog.TrainerConfig]()
}
