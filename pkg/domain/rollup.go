package domain

import (
	"fmt"
	"sort"
)

// Rollup is the full persisted snapshot of a project and every block it
// transitively owns. It is a complete image, never a diff.
type Rollup struct {
	Project Project          `json:"project"`
	Blocks  map[string]Block `json:"blocks"`
}

// BlockIDs returns the rollup's block ids in sorted order.
func (r Rollup) BlockIDs() []string {
	ids := make([]string, 0, len(r.Blocks))
	for id := range r.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindBlock satisfies lookups over the rollup's blocks.
func (r Rollup) FindBlock(id string) (Block, bool) {
	b, ok := r.Blocks[id]
	return b, ok
}

// Validate checks that every referenced block is present and belongs to the project.
func (r Rollup) Validate() error {
	if r.Project.ID == "" {
		return fmt.Errorf("rollup: project id required: %w", ErrInvalidParameters)
	}
	seen := make(map[string]struct{}, len(r.Blocks))
	var walk func(id string) error
	walk = func(id string) error {
		if _, ok := seen[id]; ok {
			return nil
		}
		block, ok := r.Blocks[id]
		if !ok {
			return fmt.Errorf("rollup %s: %w", r.Project.ID, ErrNotFound{Entity: EntityBlock, ID: id})
		}
		seen[id] = struct{}{}
		if block.ProjectID != r.Project.ID {
			return fmt.Errorf("rollup %s: block %s has project %q", r.Project.ID, id, block.ProjectID)
		}
		for _, child := range block.Children() {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range r.Project.Components {
		if err := walk(id); err != nil {
			return err
		}
	}
	for id, block := range r.Blocks {
		if id != block.ID {
			return fmt.Errorf("rollup %s: block keyed %s has id %s", r.Project.ID, id, block.ID)
		}
	}
	return nil
}
