// Package postgres provides a RollupStore on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"gencon/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.RollupStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/gencon?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open hook and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Store keeps one row per project holding the JSONB rollup of its latest save.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a store using dsn (falls back to defaultDSN) and ensures the
// rollups table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS rollups (
		project_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure rollups table: %w", err)
	}
	return nil
}

// SaveRollup upserts rollup at the next version for its project.
func (s *Store) SaveRollup(ctx context.Context, rollup domain.Rollup) (version int, retErr error) {
	if err := rollup.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var current int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM rollups WHERE project_id = $1`, rollup.Project.ID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("select version: %w", err)
	}
	version = int(current) + 1
	rollup.Project.Version = version
	payload, err := json.Marshal(rollup)
	if err != nil {
		return 0, fmt.Errorf("encode rollup %s: %w", rollup.Project.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO rollups (project_id, version, payload) VALUES ($1, $2, $3) ON CONFLICT (project_id) DO UPDATE SET version = EXCLUDED.version, payload = EXCLUDED.payload`,
		rollup.Project.ID, int64(version), payload); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", rollup.Project.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return version, nil
}

// LoadRollup returns the latest stored rollup for projectID.
func (s *Store) LoadRollup(ctx context.Context, projectID string) (domain.Rollup, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM rollups WHERE project_id = $1`, projectID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Rollup{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	if err != nil {
		return domain.Rollup{}, fmt.Errorf("select rollup: %w", err)
	}
	return decode(projectID, payload)
}

// ListProjects returns every stored project.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, payload FROM rollups`)
	if err != nil {
		return nil, fmt.Errorf("select rollups: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Project
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rollup, err := decode(id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, rollup.Project)
	}
	return out, rows.Err()
}

// DeleteRollup removes the stored project.
func (s *Store) DeleteRollup(ctx context.Context, projectID string) error {
	if _, err := s.LoadRollup(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rollups WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete %s: %w", projectID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func decode(projectID string, payload []byte) (domain.Rollup, error) {
	var rollup domain.Rollup
	if err := json.Unmarshal(payload, &rollup); err != nil {
		return domain.Rollup{}, fmt.Errorf("decode rollup %s: %w", projectID, err)
	}
	return rollup, nil
}
