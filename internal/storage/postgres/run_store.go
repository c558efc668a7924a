// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// DefaultTable receives one row per fetch run.
const DefaultTable = "wigle_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RunStore writes run rows into Postgres.
type RunStore struct {
	pool  execCloser
	table string
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool execCloser, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the run table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	row_index     INTEGER NOT NULL,
	min_lat       DOUBLE PRECISION NOT NULL,
	max_lat       DOUBLE PRECISION NOT NULL,
	min_lon       DOUBLE PRECISION NOT NULL,
	max_lon       DOUBLE PRECISION NOT NULL,
	after_date    TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	seen          INTEGER NOT NULL,
	total         INTEGER NOT NULL,
	matched       INTEGER NOT NULL,
	retries       INTEGER NOT NULL,
	pages         INTEGER NOT NULL,
	stop_reason   TEXT NOT NULL,
	error_text    TEXT NOT NULL DEFAULT '',
	output_path   TEXT NOT NULL,
	content_hash  TEXT NOT NULL DEFAULT '',
	blob_uri      TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create run table: %w", err)
	}
	return nil
}

// RecordRun inserts a run row into Postgres.
func (s *RunStore) RecordRun(ctx context.Context, run wigle.RunRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	row_index,
	min_lat,
	max_lat,
	min_lon,
	max_lon,
	after_date,
	started_at,
	finished_at,
	seen,
	total,
	matched,
	retries,
	pages,
	stop_reason,
	error_text,
	output_path,
	content_hash,
	blob_uri
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)`, s.table)

	args := []any{
		run.ID,
		run.RowIndex,
		run.BBox.MinLat,
		run.BBox.MaxLat,
		run.BBox.MinLon,
		run.BBox.MaxLon,
		run.AfterDate,
		run.StartedAt,
		run.FinishedAt,
		run.Seen,
		run.Total,
		run.Matched,
		run.Retries,
		run.Pages,
		string(run.Stop),
		run.ErrorText,
		run.OutputPath,
		run.ContentHash,
		run.BlobURI,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
