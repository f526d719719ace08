// Package db persists compiled pipelines in a SQLite file whose schema is
// kept current by embedded goose migrations.
package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/stepforge/internal/pipeline"
)

// ErrNotFound is returned when a pipeline id does not exist.
var ErrNotFound = errors.New("compiled pipeline not found")

// Store provides persistence for compiled pipelines.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PipelineRecord is a stored compilation.
type PipelineRecord struct {
	ID         string
	Name       string
	CreatedAt  string
	Format     string
	Document   string
	Components []ComponentRecord
}

// ComponentRecord is a stored component summary.
type ComponentRecord struct {
	Position int
	Name     string
	Class    string
	Upstream []string
}

// SavePipeline stores compiled with its encoded document and returns the
// new record id.
func (s *Store) SavePipeline(ctx context.Context, compiled *pipeline.Compiled, format string) (string, error) {
	var doc bytes.Buffer
	if err := compiled.Encode(&doc, format); err != nil {
		return "", err
	}
	if format == "" {
		format = "yaml"
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("begin save pipeline: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO pipelines(id, name, created_at, format, document) VALUES(?, ?, ?, ?, ?)`,
		id, compiled.Pipeline, createdAt, format, doc.String()); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("insert pipeline: %w", err)
	}
	for i, c := range compiled.Components {
		upstream, err := json.Marshal(c.Upstream())
		if err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("marshal upstream: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO components(pipeline_id, position, name, class, upstream) VALUES(?, ?, ?, ?, ?)`,
			id, i, c.Name, c.Class, string(upstream)); err != nil {
			_ = tx.Rollback()
			return "", fmt.Errorf("insert component: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save pipeline: %w", err)
	}
	return id, nil
}

// ListPipelines returns stored pipelines without documents, newest first.
// An empty name lists all pipelines.
func (s *Store) ListPipelines(ctx context.Context, name string) ([]PipelineRecord, error) {
	query := `SELECT id, name, created_at, format FROM pipelines`
	args := []any{}
	if name != "" {
		query += " WHERE name=?"
		args = append(args, name)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pipelines: %w", err)
	}
	defer rows.Close()

	var out []PipelineRecord
	for rows.Next() {
		var r PipelineRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.Format); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipelines: %w", err)
	}
	return out, nil
}

// GetPipeline returns the pipeline with its document and components.
func (s *Store) GetPipeline(ctx context.Context, id string) (PipelineRecord, error) {
	var r PipelineRecord
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at, format, document FROM pipelines WHERE id=?`, id)
	if err := row.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.Format, &r.Document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PipelineRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return PipelineRecord{}, fmt.Errorf("read pipeline: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT position, name, class, upstream FROM components WHERE pipeline_id=? ORDER BY position`, id)
	if err != nil {
		return PipelineRecord{}, fmt.Errorf("query components: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c        ComponentRecord
			upstream string
		)
		if err := rows.Scan(&c.Position, &c.Name, &c.Class, &upstream); err != nil {
			return PipelineRecord{}, fmt.Errorf("scan component: %w", err)
		}
		if err := json.Unmarshal([]byte(upstream), &c.Upstream); err != nil {
			return PipelineRecord{}, fmt.Errorf("decode upstream: %w", err)
		}
		r.Components = append(r.Components, c)
	}
	if err := rows.Err(); err != nil {
		return PipelineRecord{}, fmt.Errorf("iterate components: %w", err)
	}
	return r, nil
}
