// Package sqlite provides a RollupStore on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"gencon/pkg/domain"
)

var _ domain.RollupStore = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "gencon.db"

// Store keeps one row per project holding the JSON rollup of its latest save.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens or creates the database at path and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS rollups (
		project_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create rollups table: %w", err)
	}
	return &Store{db: db, path: path}, nil
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
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	var current int
	err = tx.QueryRowContext(ctx, `SELECT version FROM rollups WHERE project_id = ?`, rollup.Project.ID).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("select version: %w", err)
	}
	version = current + 1
	rollup.Project.Version = version
	payload, err := json.Marshal(rollup)
	if err != nil {
		return 0, fmt.Errorf("encode rollup %s: %w", rollup.Project.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO rollups(project_id,version,payload) VALUES(?,?,?) ON CONFLICT(project_id) DO UPDATE SET version=excluded.version, payload=excluded.payload`,
		rollup.Project.ID, version, payload); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", rollup.Project.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// LoadRollup returns the latest stored rollup for projectID.
func (s *Store) LoadRollup(ctx context.Context, projectID string) (domain.Rollup, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM rollups WHERE project_id = ?`, projectID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Rollup{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	if err != nil {
		return domain.Rollup{}, fmt.Errorf("select rollup: %w", err)
	}
	var rollup domain.Rollup
	if err := json.Unmarshal(payload, &rollup); err != nil {
		return domain.Rollup{}, fmt.Errorf("decode rollup %s: %w", projectID, err)
	}
	return rollup, nil
}

// ListProjects returns the stored projects ordered by id.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM rollups ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("select rollups: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Project
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var rollup domain.Rollup
		if err := json.Unmarshal(payload, &rollup); err != nil {
			return nil, fmt.Errorf("decode rollup: %w", err)
		}
		out = append(out, rollup.Project)
	}
	return out, rows.Err()
}

// DeleteRollup removes the stored project.
func (s *Store) DeleteRollup(ctx context.Context, projectID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rollups WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", projectID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
