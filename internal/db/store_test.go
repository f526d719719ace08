package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/metalagman/stepforge/internal/catalog"
	"github.com/metalagman/stepforge/internal/component"
	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/metalagman/stepforge/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stepforge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func compileSample(t *testing.T, name string) *pipeline.Compiled {
	t.Helper()
	def, err := pipeline.Parse([]byte(`name: ` + name + `
steps:
  - name: load
    class: csv_importer
    config: {path: data.csv}
  - name: split
    class: splitter
    config: {test_fraction: 0.3}
    inputs: {dataset: load}
`))
	require.NoError(t, err)
	reg := materializer.Default()
	cat, err := catalog.Builtin(reg, component.NewCompiler(reg))
	require.NoError(t, err)
	compiled, err := pipeline.Compile(def, cat, reg)
	require.NoError(t, err)
	return compiled
}

func TestSaveAndGetPipeline(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.SavePipeline(ctx, compileSample(t, "prep"), "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := store.GetPipeline(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "prep", rec.Name)
	assert.Equal(t, "yaml", rec.Format)
	assert.True(t, strings.HasPrefix(rec.Document, "pipeline: prep"), rec.Document)
	require.Len(t, rec.Components, 2)
	assert.Equal(t, ComponentRecord{Position: 0, Name: "load", Class: "csv_importer", Upstream: []string{}}, rec.Components[0])
	assert.Equal(t, []string{"load"}, rec.Components[1].Upstream)
}

func TestListPipelines(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.SavePipeline(ctx, compileSample(t, "prep"), "json")
	require.NoError(t, err)
	second, err := store.SavePipeline(ctx, compileSample(t, "other"), "yaml")
	require.NoError(t, err)

	all, err := store.ListPipelines(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)
	assert.Empty(t, all[0].Document)

	prep, err := store.ListPipelines(ctx, "prep")
	require.NoError(t, err)
	require.Len(t, prep, 1)
	assert.Equal(t, "json", prep[0].Format)
}

func TestGetPipelineNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.GetPipeline(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSavePipelineRejectsUnknownFormat(t *testing.T) {
	store := openStore(t)
	_, err := store.SavePipeline(context.Background(), compileSample(t, "prep"), "xml")
	require.ErrorIs(t, err, pipeline.ErrUnsupportedFormat)

	all, err := store.ListPipelines(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stepforge.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestOpenCreatesDirectoryAndEnforcesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "stepforge.db")
	storeDB, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeDB.Close() })

	var enabled int
	require.NoError(t, storeDB.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)

	_, err = storeDB.Exec(`INSERT INTO components(pipeline_id, position, name, class, upstream) VALUES('missing', 0, 'a', 'b', '[]')`)
	require.Error(t, err)
}
