package step

import (
	"reflect"
	"testing"

	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type table struct {
	Columns []string
}

type model struct {
	Weights []float64
}

type unregistered struct{}

type trainConfig struct {
	BaseConfig
	Epochs int     `mapstructure:"epochs"`
	Rate   float64 `mapstructure:"rate"`
}

type otherConfig struct {
	BaseConfig
	Name string `mapstructure:"name"`
}

func testRegistry(t *testing.T) *materializer.Registry {
	t.Helper()
	r := materializer.Default()
	require.NoError(t, r.Register(materializer.New("table", reflect.TypeFor[table]())))
	require.NoError(t, r.Register(materializer.New("model", reflect.TypeFor[model]())))
	return r
}

func TestClassifyInputsAndConfig(t *testing.T) {
	t.Parallel()

	spec, err := Classify(Signature{
		Params: []Param{
			P[table]("train"),
			P[trainConfig]("config"),
			P[table]("validation"),
			P[int]("seed"),
		},
		Return: Returns[model](),
	}, testRegistry(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"train", "validation", "seed"}, spec.Inputs.Names())
	assert.Equal(t, reflect.TypeFor[trainConfig](), spec.Config)
	for _, e := range spec.Inputs.Entries() {
		assert.Equal(t, BaseArtifact, e.Type)
	}
	in, ok := spec.Inputs.Get("train")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[table](), in.Declared)
	assert.False(t, spec.Inputs.Has("config"))

	require.Equal(t, 1, spec.Outputs.Len())
	assert.Equal(t, []string{SingleOutputName}, spec.Outputs.Names())
}

func TestClassifyPointerConfig(t *testing.T) {
	t.Parallel()

	spec, err := Classify(Signature{Params: []Param{P[*trainConfig]("config")}}, testRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[*trainConfig](), spec.Config)
	assert.Zero(t, spec.Inputs.Len())
	assert.Zero(t, spec.Outputs.Len())
}

func TestClassifyRejectsSecondConfig(t *testing.T) {
	t.Parallel()

	for _, params := range [][]Param{
		{P[trainConfig]("a"), P[otherConfig]("b")},
		{P[trainConfig]("a"), P[trainConfig]("b")},
		{P[table]("in"), P[otherConfig]("a"), P[trainConfig]("b")},
	} {
		_, err := Classify(Signature{Params: params}, testRegistry(t))
		require.ErrorIs(t, err, ErrMultipleConfigs)
		assert.Contains(t, err.Error(), `"b"`)
	}
}

func TestClassifyRejectsUnknownParamType(t *testing.T) {
	t.Parallel()

	_, err := Classify(Signature{Params: []Param{P[table]("ok"), P[unregistered]("raw")}}, testRegistry(t))
	require.ErrorIs(t, err, ErrUnclassifiableParam)
	assert.Contains(t, err.Error(), `"raw"`)
	assert.Contains(t, err.Error(), "step.unregistered")
}

func TestClassifyNamedOutputsKeepOrder(t *testing.T) {
	t.Parallel()

	spec, err := Classify(Signature{
		Return: Named(P[table]("train"), P[table]("test"), P[model]("baseline")),
	}, testRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"train", "test", "baseline"}, spec.Outputs.Names())
}

func TestClassifyRejectsUnregisteredReturns(t *testing.T) {
	t.Parallel()

	_, err := Classify(Signature{Return: Named(P[table]("ok"), P[unregistered]("bad"))}, testRegistry(t))
	require.ErrorIs(t, err, ErrUnregisteredReturn)
	assert.Contains(t, err.Error(), `"bad"`)

	_, err = Classify(Signature{Return: Returns[unregistered]()}, testRegistry(t))
	require.ErrorIs(t, err, ErrUnregisteredReturn)

	_, err = Classify(Signature{Return: Returns[trainConfig]()}, testRegistry(t))
	require.ErrorIs(t, err, ErrUnregisteredReturn, "configs are not artifacts")
}

func TestClassifyRejectsMalformedSignatures(t *testing.T) {
	t.Parallel()

	cases := map[string]Signature{
		"empty name":       {Params: []Param{P[int]("")}},
		"duplicate param":  {Params: []Param{P[int]("x"), P[string]("x")}},
		"nil param type":   {Params: []Param{{Name: "x"}}},
		"duplicate output": {Return: Named(P[int]("x"), P[int]("x"))},
		"nil single":       {Return: Single{}},
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Classify(sig, testRegistry(t))
			require.ErrorIs(t, err, ErrInvalidSignature)
		})
	}

	_, err := Classify(Signature{}, nil)
	require.ErrorIs(t, err, ErrInvalidSignature)
}
