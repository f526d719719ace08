package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// pragma is a connection setting applied right after open.
type pragma struct {
	stmt string
	// optional settings may be refused by the filesystem without failing Open.
	optional bool
}

var pragmas = []pragma{
	// components.pipeline_id cascades from pipelines
	{stmt: "PRAGMA foreign_keys=ON"},
	{stmt: "PRAGMA busy_timeout=5000"},
	{stmt: "PRAGMA journal_mode=WAL", optional: true},
}

// Open opens the compiled pipeline database at path, creating the file and
// its directory when missing, and migrates it to the latest schema.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// a single connection keeps the per-connection pragmas in force
	db.SetMaxOpenConns(1)

	if err := configure(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	version, err := migrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Int64("schema_version", version).Msg("compiled pipeline store ready")
	return db, nil
}

func configure(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			if p.optional {
				log.Warn().Err(err).Str("pragma", p.stmt).Msg("store: optional pragma not applied")
				continue
			}
			return fmt.Errorf("apply %q: %w", p.stmt, err)
		}
	}
	return nil
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

func migrate(db *sql.DB) (int64, error) {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return 0, fmt.Errorf("migrate store: %w", err)
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
