// Package memory provides an in-memory RollupStore used for tests and
// ephemeral editors.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"gencon/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.RollupStore = (*Store)(nil)

type record struct {
	version int
	payload []byte
}

// Store keeps the encoded rollup of each project. Rollups are stored as JSON
// so callers never share slices or maps with the store.
type Store struct {
	mu       sync.RWMutex
	projects map[string]record
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{projects: make(map[string]record)}
}

// SaveRollup stores rollup at the next version for its project.
func (s *Store) SaveRollup(_ context.Context, rollup domain.Rollup) (int, error) {
	if err := rollup.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	version := s.projects[rollup.Project.ID].version + 1
	rollup.Project.Version = version
	payload, err := json.Marshal(rollup)
	if err != nil {
		return 0, fmt.Errorf("encode rollup %s: %w", rollup.Project.ID, err)
	}
	s.projects[rollup.Project.ID] = record{version: version, payload: payload}
	return version, nil
}

// LoadRollup returns the latest stored rollup for projectID.
func (s *Store) LoadRollup(_ context.Context, projectID string) (domain.Rollup, error) {
	s.mu.RLock()
	rec, ok := s.projects[projectID]
	s.mu.RUnlock()
	if !ok {
		return domain.Rollup{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	var rollup domain.Rollup
	if err := json.Unmarshal(rec.payload, &rollup); err != nil {
		return domain.Rollup{}, fmt.Errorf("decode rollup %s: %w", projectID, err)
	}
	return rollup, nil
}

// ListProjects returns the stored projects sorted by id.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	out := make([]domain.Project, 0, len(ids))
	for _, id := range ids {
		rollup, err := s.LoadRollup(ctx, id)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, rollup.Project)
	}
	return out, nil
}

// DeleteRollup removes the stored project.
func (s *Store) DeleteRollup(_ context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	delete(s.projects, projectID)
	return nil
}
