package core

import (
	"context"
	"fmt"

	"gencon/internal/redux"
	"gencon/internal/undo"
	"gencon/pkg/domain"
)

// txn is the handle an operation uses inside Editor.run. Reads see every
// change already dispatched in the same transaction.
type txn struct {
	e   *Editor
	ctx context.Context
}

func (t *txn) state() State { return t.e.store.GetState() }

func (t *txn) block(id string) (domain.Block, error) {
	b, ok := t.state().Blocks[id]
	if !ok {
		return domain.Block{}, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	return b, nil
}

func (t *txn) project(id string) (domain.Project, error) {
	p, ok := t.state().Projects[id]
	if !ok {
		return domain.Project{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	return p, nil
}

func (t *txn) order(id string) (domain.Order, error) {
	o, ok := t.state().Orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound{Entity: domain.EntityOrder, ID: id}
	}
	return o, nil
}

// apply dispatches an undoable patch.
func (t *txn) apply(actionType string, p patch) {
	t.e.store.Dispatch(redux.Action{Type: actionType, Undoable: true, Payload: p})
}

// load dispatches a patch that is not recorded in history.
func (t *txn) load(actionType string, p patch) {
	t.e.store.Dispatch(redux.Action{Type: actionType, Payload: p})
}

// loadPurging dispatches a patch that is not recorded and clears history.
func (t *txn) loadPurging(actionType string, p patch) {
	t.e.store.Dispatch(undo.MakePurging(redux.Action{Type: actionType, Payload: p}))
}

func (t *txn) putBlocks(actionType string, blocks ...domain.Block) {
	if len(blocks) == 0 {
		return
	}
	t.apply(actionType, patch{Blocks: blocks})
}

// updateBlock applies fn to the block with id and stores the result.
func (t *txn) updateBlock(actionType, id string, fn func(domain.Block) (domain.Block, error)) (domain.Block, error) {
	b, err := t.block(id)
	if err != nil {
		return domain.Block{}, err
	}
	next, err := fn(b)
	if err != nil {
		return domain.Block{}, err
	}
	if redux.Changed(b, next) {
		t.putBlocks(actionType, next)
	}
	return next, nil
}

func (t *txn) updateProject(actionType, id string, fn func(domain.Project) (domain.Project, error)) (domain.Project, error) {
	p, err := t.project(id)
	if err != nil {
		return domain.Project{}, err
	}
	next, err := fn(p)
	if err != nil {
		return domain.Project{}, err
	}
	if redux.Changed(p, next) {
		t.apply(actionType, patch{Projects: []domain.Project{next}})
	}
	return next, nil
}

func (t *txn) updateOrder(actionType, id string, fn func(domain.Order) (domain.Order, error)) (domain.Order, error) {
	o, err := t.order(id)
	if err != nil {
		return domain.Order{}, err
	}
	next, err := fn(o)
	if err != nil {
		return domain.Order{}, err
	}
	if redux.Changed(o, next) {
		t.apply(actionType, patch{Orders: []domain.Order{next}})
	}
	return next, nil
}

// descendants returns id and every block it transitively owns, parents
// before children. Missing children are skipped.
func (t *txn) descendants(id string) ([]domain.Block, error) {
	root, err := t.block(id)
	if err != nil {
		return nil, err
	}
	return collectDescendants(t.state().Blocks, root), nil
}

func collectDescendants(blocks map[string]domain.Block, root domain.Block) []domain.Block {
	out := []domain.Block{root}
	seen := map[string]bool{root.ID: true}
	for i := 0; i < len(out); i++ {
		for _, cid := range out[i].Children() {
			if seen[cid] {
				continue
			}
			child, ok := blocks[cid]
			if !ok {
				continue
			}
			seen[cid] = true
			out = append(out, child)
		}
	}
	return out
}

// adopt moves id and its descendants into projectID. Blocks already in a
// different project are rejected unless force is set.
func (t *txn) adopt(actionType, id, projectID string, force bool) error {
	tree, err := t.descendants(id)
	if err != nil {
		return err
	}
	var changed []domain.Block
	for _, b := range tree {
		if b.ProjectID == projectID {
			continue
		}
		if b.ProjectID != "" && projectID != "" {
			if !force {
				return fmt.Errorf("block %s in project %s: %w", b.ID, b.ProjectID, domain.ErrProjectReassign)
			}
			if b, err = b.SetProjectID(""); err != nil {
				return err
			}
		}
		next, err := b.SetProjectID(projectID)
		if err != nil {
			return err
		}
		changed = append(changed, next)
	}
	t.putBlocks(actionType, changed...)
	return nil
}

// isAncestor reports whether ancestorID transitively owns id.
func (t *txn) isAncestor(ancestorID, id string) bool {
	blocks := t.state().Blocks
	root, ok := blocks[ancestorID]
	if !ok {
		return false
	}
	for _, b := range collectDescendants(blocks, root) {
		if b.ID == id {
			return true
		}
	}
	return false
}

// detach removes id from every block and project that lists it.
func (t *txn) detach(actionType, id string) error {
	st := t.state()
	for _, ownerID := range t.e.owners.lookup(st.Blocks)[id] {
		owner := st.Blocks[ownerID]
		var (
			next domain.Block
			err  error
		)
		if owner.IsList() {
			next, err = owner.RemoveOptions(id)
		} else {
			next, err = owner.RemoveComponent(id)
		}
		if err != nil {
			return err
		}
		t.putBlocks(actionType, next)
	}
	for _, pid := range sortedKeys(st.Projects) {
		p := st.Projects[pid]
		if indexOf(p.Components, id) < 0 {
			continue
		}
		next, err := p.RemoveComponents(id)
		if err != nil {
			return err
		}
		t.apply(actionType, patch{Projects: []domain.Project{next}})
	}
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
