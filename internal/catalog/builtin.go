package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"reflect"
	"strconv"

	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/metalagman/stepforge/internal/step"
)

// Names of the built-in step classes.
const (
	ImporterName  = "csv_importer"
	SplitterName  = "splitter"
	TrainerName   = "trainer"
	EvaluatorName = "evaluator"
)

// ImporterConfig configures csv_importer.
type ImporterConfig struct {
	step.BaseConfig
	Path      string `json:"path"      mapstructure:"path"`
	Delimiter string `json:"delimiter" mapstructure:"delimiter"`
}

// SplitConfig configures splitter.
type SplitConfig struct {
	step.BaseConfig
	TestFraction float64 `json:"test_fraction" mapstructure:"test_fraction"`
	Seed         int64   `json:"seed"          mapstructure:"seed"`
}

// TrainerConfig configures trainer.
type TrainerConfig struct {
	step.BaseConfig
	Target       string  `json:"target"        mapstructure:"target"`
	Epochs       int     `json:"epochs"        mapstructure:"epochs"`
	LearningRate float64 `json:"learning_rate" mapstructure:"learning_rate"`
}

const importerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "path": { "type": "string", "minLength": 1 },
    "delimiter": { "type": "string", "maxLength": 1 }
  },
  "required": ["path"]
}`

const splitSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "test_fraction": { "type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1 },
    "seed": { "type": "integer" }
  },
  "required": ["test_fraction"]
}`

const trainerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "target": { "type": "string", "minLength": 1 },
    "epochs": { "type": "integer", "minimum": 1 },
    "learning_rate": { "type": "number", "exclusiveMinimum": 0 }
  },
  "required": ["target", "epochs", "learning_rate"]
}`

// RegisterTypes registers the materializers of the built-in artifact types.
func RegisterTypes(reg *materializer.Registry) error {
	for _, m := range []materializer.Materializer{
		materializer.New("dataset", reflect.TypeFor[Dataset]()),
		materializer.New("model", reflect.TypeFor[Model]()),
		materializer.New("metrics", reflect.TypeFor[Metrics]()),
	} {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register %s materializer: %w", m.Name(), err)
		}
	}
	return nil
}

// Builtin registers the built-in artifact types in reg and returns a
// catalog holding the built-in step classes.
func Builtin(reg *materializer.Registry, factory step.ComponentFactory) (*Catalog, error) {
	if err := RegisterTypes(reg); err != nil {
		return nil, err
	}
	opts := func(desc, schema string) []step.Option {
		return []step.Option{
			step.WithRegistry(reg),
			step.WithComponentFactory(factory),
			step.WithDescription(desc),
			step.WithConfigSchema(schema),
		}
	}

	defs := []struct {
		name string
		sig  step.Signature
		proc step.ProcessorFunc
		opts []step.Option
	}{
		{
			name: ImporterName,
			sig: step.Signature{
				Params: []step.Param{step.P[ImporterConfig]("config")},
				Return: step.Returns[Dataset](),
			},
			proc: importCSV,
			opts: opts("Reads a numeric CSV file with a header row into a dataset.", importerSchema),
		},
		{
			name: SplitterName,
			sig: step.Signature{
				Params: []step.Param{step.P[Dataset]("dataset"), step.P[SplitConfig]("config")},
				Return: step.Named(step.P[Dataset]("train"), step.P[Dataset]("test")),
			},
			proc: splitDataset,
			opts: opts("Shuffles a dataset and splits it into train and test sets.", splitSchema),
		},
		{
			name: TrainerName,
			sig: step.Signature{
				Params: []step.Param{step.P[Dataset]("train"), step.P[TrainerConfig]("config")},
				Return: step.Returns[Model](),
			},
			proc: trainLinear,
			opts: opts("Fits a linear regression with batch gradient descent.", trainerSchema),
		},
		{
			name: EvaluatorName,
			sig: step.Signature{
				Params: []step.Param{step.P[Model]("model"), step.P[Dataset]("test")},
				Return: step.Named(step.P[Metrics]("metrics")),
			},
			proc: evaluate,
			opts: []step.Option{
				step.WithRegistry(reg),
				step.WithComponentFactory(factory),
				step.WithDescription("Scores a model against a held-out dataset."),
			},
		},
	}

	cat := New()
	for _, d := range defs {
		class, err := step.Define(d.name, d.sig, d.proc, d.opts...)
		if err != nil {
			return nil, err
		}
		if err := cat.Register(class); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func arg[T any](args step.Args, name string) (T, error) {
	var zero T
	v, ok := args[name]
	if !ok {
		return zero, fmt.Errorf("missing argument %q", name)
	}
	switch t := v.(type) {
	case T:
		return t, nil
	case *T:
		if t != nil {
			return *t, nil
		}
	}
	return zero, fmt.Errorf("argument %q is %T, want %T", name, v, zero)
}

func importCSV(ctx context.Context, args step.Args) (step.Results, error) {
	cfg, err := arg[ImporterConfig](args, "config")
	if err != nil {
		return nil, err
	}
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if cfg.Delimiter != "" {
		r.Comma = []rune(cfg.Delimiter)[0]
	}
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	ds := Dataset{Columns: header}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i], err)
			}
			row[i] = v
		}
		ds.Rows = append(ds.Rows, row)
	}
	return step.Results{step.SingleOutputName: ds}, nil
}

func splitDataset(_ context.Context, args step.Args) (step.Results, error) {
	ds, err := arg[Dataset](args, "dataset")
	if err != nil {
		return nil, err
	}
	cfg, err := arg[SplitConfig](args, "config")
	if err != nil {
		return nil, err
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		return nil, fmt.Errorf("test_fraction must be in (0, 1), got %v", cfg.TestFraction)
	}

	order := rand.New(rand.NewSource(cfg.Seed)).Perm(len(ds.Rows))
	nTest := int(math.Round(float64(len(ds.Rows)) * cfg.TestFraction))
	train := Dataset{Columns: ds.Columns}
	test := Dataset{Columns: ds.Columns}
	for i, idx := range order {
		if i < nTest {
			test.Rows = append(test.Rows, ds.Rows[idx])
		} else {
			train.Rows = append(train.Rows, ds.Rows[idx])
		}
	}
	return step.Results{"train": train, "test": test}, nil
}

func trainLinear(ctx context.Context, args step.Args) (step.Results, error) {
	ds, err := arg[Dataset](args, "train")
	if err != nil {
		return nil, err
	}
	cfg, err := arg[TrainerConfig](args, "config")
	if err != nil {
		return nil, err
	}
	xs, ys, features, err := ds.split(cfg.Target)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, errors.New("cannot train on an empty dataset")
	}

	m := Model{Target: cfg.Target, Features: features, Weights: make([]float64, len(features))}
	n := float64(len(xs))
	grad := make([]float64, len(features))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clear(grad)
		var gradBias float64
		for i, x := range xs {
			diff := m.Predict(x) - ys[i]
			for j, v := range x {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range m.Weights {
			m.Weights[j] -= cfg.LearningRate * 2 * grad[j] / n
		}
		m.Bias -= cfg.LearningRate * 2 * gradBias / n
	}
	return step.Results{step.SingleOutputName: m}, nil
}

func evaluate(_ context.Context, args step.Args) (step.Results, error) {
	m, err := arg[Model](args, "model")
	if err != nil {
		return nil, err
	}
	ds, err := arg[Dataset](args, "test")
	if err != nil {
		return nil, err
	}
	xs, ys, features, err := ds.split(m.Target)
	if err != nil {
		return nil, err
	}
	if len(features) != len(m.Weights) {
		return nil, fmt.Errorf("model expects %d features, dataset has %d", len(m.Weights), len(features))
	}

	metrics := Metrics{Samples: len(xs)}
	for i, x := range xs {
		diff := m.Predict(x) - ys[i]
		metrics.MSE += diff * diff
		metrics.MAE += math.Abs(diff)
	}
	if metrics.Samples > 0 {
		metrics.MSE /= float64(metrics.Samples)
		metrics.MAE /= float64(metrics.Samples)
	}
	return step.Results{"metrics": metrics}, nil
}
