package core

import (
	"fmt"
	"sync"

	"gencon/internal/redux"
	"gencon/pkg/combinatorics"
	"gencon/pkg/domain"
)

// ownerIndex maps a block id to the ids of the blocks that list it as a
// component or option. It is rebuilt whenever the blocks map is replaced;
// src keeps the indexed map reachable so its identity is not reused.
type ownerIndex struct {
	mu     sync.Mutex
	key    uint64
	primed bool
	src    map[string]domain.Block
	owners map[string][]string
}

func (x *ownerIndex) lookup(blocks map[string]domain.Block) map[string][]string {
	key := redux.Identity(blocks)
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.primed && x.key == key {
		return x.owners
	}
	owners := make(map[string][]string)
	for _, id := range sortedKeys(blocks) {
		for _, child := range blocks[id].Children() {
			owners[child] = append(owners[child], id)
		}
	}
	x.key, x.primed, x.src, x.owners = key, true, blocks, owners
	return owners
}

// BlockParent returns the block owning id. ok is false for top-level blocks.
// A block listed by more than one owner is reported as ErrAliased.
func (e *Editor) BlockParent(id string) (parent domain.Block, ok bool, err error) {
	st := e.State()
	if _, exists := st.Blocks[id]; !exists {
		return domain.Block{}, false, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	return e.parentOf(st, id)
}

func (e *Editor) parentOf(st State, id string) (domain.Block, bool, error) {
	owners := e.owners.lookup(st.Blocks)[id]
	switch len(owners) {
	case 0:
		return domain.Block{}, false, nil
	case 1:
		return st.Blocks[owners[0]], true, nil
	default:
		return domain.Block{}, false, fmt.Errorf("block %s owned by %v: %w", id, owners, domain.ErrAliased)
	}
}

// BlockParents returns the ancestors of id, nearest first.
func (e *Editor) BlockParents(id string) ([]domain.Block, error) {
	st := e.State()
	if _, ok := st.Blocks[id]; !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	var out []domain.Block
	seen := map[string]bool{id: true}
	for current := id; ; {
		parent, ok, err := e.parentOf(st, current)
		if err != nil {
			return nil, err
		}
		if !ok || seen[parent.ID] {
			return out, nil
		}
		seen[parent.ID] = true
		out = append(out, parent)
		current = parent.ID
	}
}

// BlockChildrenRecursive returns every block id transitively owns, parents
// before children, excluding id itself.
func (e *Editor) BlockChildrenRecursive(id string) ([]domain.Block, error) {
	st := e.State()
	root, ok := st.Blocks[id]
	if !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	return collectDescendants(st.Blocks, root)[1:], nil
}

// BlockProject returns the project id belongs to, either through its own
// project id or through the project listing its top-level ancestor.
func (e *Editor) BlockProject(id string) (domain.Project, bool, error) {
	st := e.State()
	b, ok := st.Blocks[id]
	if !ok {
		return domain.Project{}, false, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	if b.ProjectID != "" {
		p, ok := st.Projects[b.ProjectID]
		return p, ok, nil
	}
	parents, err := e.BlockParents(id)
	if err != nil {
		return domain.Project{}, false, err
	}
	root := id
	if n := len(parents); n > 0 {
		root = parents[n-1].ID
	}
	for _, pid := range sortedKeys(st.Projects) {
		if indexOf(st.Projects[pid].Components, root) >= 0 {
			return st.Projects[pid], true, nil
		}
	}
	return domain.Project{}, false, nil
}

func (e *Editor) lookup() combinatorics.MapLookup {
	return combinatorics.MapLookup(e.State().Blocks)
}

// Flatten returns the positions of construct id: its non-construct
// descendants in order.
func (e *Editor) Flatten(id string) ([]domain.Block, error) {
	return combinatorics.Flatten(e.lookup(), id)
}

// PositionalCombinations returns the candidate block ids of each position.
func (e *Editor) PositionalCombinations(id string, includeUnselected bool) ([][]string, error) {
	return combinatorics.PositionalCombinations(e.lookup(), id, includeUnselected)
}

// NumberOfCombinations counts the designs construct id describes.
func (e *Editor) NumberOfCombinations(id string) (int, error) {
	positions, err := combinatorics.PositionalCombinations(e.lookup(), id, false)
	if err != nil {
		return 0, err
	}
	return combinatorics.NumberOfCombinations(positions), nil
}

// AllCombinations expands construct id into every design.
func (e *Editor) AllCombinations(id string) ([][]string, error) {
	return combinatorics.AllCombinations(e.lookup(), id)
}

// IsSpec reports whether construct id is fully specified.
func (e *Editor) IsSpec(id string) (bool, error) {
	return combinatorics.IsSpec(e.lookup(), id)
}
