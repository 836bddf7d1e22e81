package core

import (
	"context"
	"errors"
	"fmt"

	"gencon/pkg/domain"
)

func prepareBlock(b domain.Block) domain.Block {
	b = b.Copy()
	if b.ID == "" {
		b.ID = domain.NewID()
	}
	if b.Parents == nil {
		b.Parents = []domain.ParentRef{}
	}
	if b.Components == nil {
		b.Components = []string{}
	}
	if b.Options == nil {
		b.Options = domain.OptionSet{}
	}
	return b
}

// BlockCreate adds a new block. An empty id is generated.
func (e *Editor) BlockCreate(ctx context.Context, block domain.Block) (domain.Block, domain.Result, error) {
	created := prepareBlock(block)
	res, err := e.run(ctx, "block.create", func(tx *txn) error {
		if _, exists := tx.state().Blocks[created.ID]; exists {
			return fmt.Errorf("block %s: %w", created.ID, domain.ErrDuplicateID)
		}
		tx.putBlocks(ActionBlockCreate, created)
		return nil
	})
	return created, res, err
}

// BlockLoad puts blocks into the state as they are, replacing any with the
// same id. Loading is not recorded in history.
func (e *Editor) BlockLoad(ctx context.Context, blocks ...domain.Block) (domain.Result, error) {
	return e.run(ctx, "block.load", func(tx *txn) error {
		loaded := make([]domain.Block, 0, len(blocks))
		for _, b := range blocks {
			if b.ID == "" {
				return fmt.Errorf("load block without id: %w", domain.ErrInvalidParameters)
			}
			loaded = append(loaded, prepareBlock(b))
		}
		if len(loaded) > 0 {
			tx.load(ActionBlockLoad, patch{Blocks: loaded})
		}
		return nil
	})
}

// BlockStash puts blocks that are not yet present into the state without
// recording history. Blocks already present are left untouched.
func (e *Editor) BlockStash(ctx context.Context, blocks ...domain.Block) (domain.Result, error) {
	return e.run(ctx, "block.stash", func(tx *txn) error {
		st := tx.state()
		var stashed []domain.Block
		for _, b := range blocks {
			if b.ID == "" {
				return fmt.Errorf("stash block without id: %w", domain.ErrInvalidParameters)
			}
			if _, ok := st.Blocks[b.ID]; ok {
				continue
			}
			stashed = append(stashed, prepareBlock(b))
		}
		if len(stashed) > 0 {
			tx.load(ActionBlockStash, patch{Blocks: stashed})
		}
		return nil
	})
}

// BlockClone deep copies id and everything it owns under fresh ids. The
// copies are detached from any project and record their source as parent.
func (e *Editor) BlockClone(ctx context.Context, id string) (domain.Block, domain.Result, error) {
	var clone domain.Block
	res, err := e.run(ctx, "block.clone", func(tx *txn) error {
		tree, err := tx.descendants(id)
		if err != nil {
			return err
		}
		remap := make(map[string]string, len(tree))
		clones := make([]domain.Block, 0, len(tree))
		for _, b := range tree {
			c := b.Clone(e.version(b.ProjectID))
			remap[b.ID] = c.ID
			clones = append(clones, c)
		}
		for i := range clones {
			clones[i] = remapChildren(clones[i], remap)
		}
		clone = clones[0]
		tx.putBlocks(ActionBlockClone, clones...)
		return nil
	})
	return clone, res, err
}

func remapChildren(b domain.Block, remap map[string]string) domain.Block {
	for i, cid := range b.Components {
		if to, ok := remap[cid]; ok {
			b.Components[i] = to
		}
	}
	for i, opt := range b.Options {
		if to, ok := remap[opt.ID]; ok {
			b.Options[i].ID = to
		}
	}
	return b
}

// BlockFreeze freezes id and every block it owns.
func (e *Editor) BlockFreeze(ctx context.Context, id string) (domain.Result, error) {
	return e.run(ctx, "block.freeze", func(tx *txn) error {
		return tx.freeze(id)
	})
}

func (t *txn) freeze(id string) error {
	tree, err := t.descendants(id)
	if err != nil {
		return err
	}
	var frozen []domain.Block
	for _, b := range tree {
		if b.IsFrozen() {
			continue
		}
		frozen = append(frozen, b.SetFrozen(true))
	}
	t.putBlocks(ActionBlockFreeze, frozen...)
	return nil
}

// BlockDelete removes blocks from their owners and projects, then from the
// state. Blocks they own are kept.
func (e *Editor) BlockDelete(ctx context.Context, ids ...string) (domain.Result, error) {
	return e.run(ctx, "block.delete", func(tx *txn) error {
		for _, id := range ids {
			if _, err := tx.block(id); err != nil {
				return err
			}
			if err := tx.detach(ActionBlockDelete, id); err != nil {
				return err
			}
		}
		tx.apply(ActionBlockDelete, patch{RemoveBlocks: ids})
		return nil
	})
}

// BlockDetach removes blocks from their owners and projects without
// deleting them.
func (e *Editor) BlockDetach(ctx context.Context, ids ...string) (domain.Result, error) {
	return e.run(ctx, "block.detach", func(tx *txn) error {
		for _, id := range ids {
			if _, err := tx.block(id); err != nil {
				return err
			}
			if err := tx.detach(ActionBlockComponentRemove, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// BlockSetProject assigns projectID to id and, unless shallow, to every
// block it owns.
func (e *Editor) BlockSetProject(ctx context.Context, id, projectID string, shallow bool) (domain.Result, error) {
	return e.run(ctx, "block.set_project", func(tx *txn) error {
		if !shallow {
			return tx.adopt(ActionBlockSetProject, id, projectID, false)
		}
		_, err := tx.updateBlock(ActionBlockSetProject, id, func(b domain.Block) (domain.Block, error) {
			return b.SetProjectID(projectID)
		})
		return err
	})
}

// BlockAddComponent makes componentID a component of parentID at index,
// removing it from its previous owner. A component from another project
// is rejected unless forceProjectID is set; otherwise it joins the parent's
// project along with everything it owns.
func (e *Editor) BlockAddComponent(ctx context.Context, parentID, componentID string, index int, forceProjectID bool) (domain.Block, domain.Result, error) {
	var parent domain.Block
	res, err := e.run(ctx, "block.component_add", func(tx *txn) error {
		p, err := tx.block(parentID)
		if err != nil {
			return err
		}
		c, err := tx.block(componentID)
		if err != nil {
			return err
		}
		if p.IsList() {
			return fmt.Errorf("block %s: %w", p.ID, domain.ErrListBlockComponents)
		}
		if componentID == parentID || tx.isAncestor(componentID, parentID) {
			return fmt.Errorf("add %s to %s: %w", componentID, parentID, domain.ErrSelfReference)
		}
		if c.ProjectID != p.ProjectID {
			if c.ProjectID != "" && !forceProjectID {
				return fmt.Errorf("block %s in project %s: %w", c.ID, c.ProjectID, domain.ErrProjectReassign)
			}
			if err := tx.adopt(ActionBlockComponentAdd, componentID, p.ProjectID, forceProjectID); err != nil {
				return err
			}
		}
		if err := tx.detach(ActionBlockComponentAdd, componentID); err != nil {
			return err
		}
		parent, err = tx.updateBlock(ActionBlockComponentAdd, parentID, func(b domain.Block) (domain.Block, error) {
			return b.AddComponent(componentID, index)
		})
		return err
	})
	return parent, res, err
}

// BlockRemoveComponent removes components from parentID. They stay in the
// state as top-level blocks.
func (e *Editor) BlockRemoveComponent(ctx context.Context, parentID string, componentIDs ...string) (domain.Block, domain.Result, error) {
	var parent domain.Block
	res, err := e.run(ctx, "block.component_remove", func(tx *txn) error {
		var err error
		parent, err = tx.updateBlock(ActionBlockComponentRemove, parentID, func(b domain.Block) (domain.Block, error) {
			for _, cid := range componentIDs {
				next, err := b.RemoveComponent(cid)
				if err != nil {
					return domain.Block{}, err
				}
				b = next
			}
			return b, nil
		})
		return err
	})
	return parent, res, err
}

// BlockMoveComponent moves an existing component of parentID to index.
func (e *Editor) BlockMoveComponent(ctx context.Context, parentID, componentID string, index int) (domain.Block, domain.Result, error) {
	var parent domain.Block
	res, err := e.run(ctx, "block.component_move", func(tx *txn) error {
		var err error
		parent, err = tx.updateBlock(ActionBlockComponentMove, parentID, func(b domain.Block) (domain.Block, error) {
			if indexOf(b.Components, componentID) < 0 {
				return domain.Block{}, domain.ErrNotFound{Entity: domain.EntityBlock, ID: componentID}
			}
			return b.MoveComponent(componentID, index)
		})
		return err
	})
	return parent, res, err
}

// BlockSetListBlock converts id to or from a list block.
func (e *Editor) BlockSetListBlock(ctx context.Context, id string, list bool) (domain.Block, domain.Result, error) {
	return e.updateBlock(ctx, "block.set_list", ActionBlockSetListBlock, id, func(b domain.Block) (domain.Block, error) {
		if b.IsList() == list {
			return b, nil
		}
		return b.SetListBlock(list)
	})
}

// BlockOptionsAdd adds selected options to list block id. Options join the
// list block's project.
func (e *Editor) BlockOptionsAdd(ctx context.Context, id string, optionIDs ...string) (domain.Block, domain.Result, error) {
	var list domain.Block
	res, err := e.run(ctx, "block.options_add", func(tx *txn) error {
		l, err := tx.block(id)
		if err != nil {
			return err
		}
		for _, oid := range optionIDs {
			if _, err := tx.block(oid); err != nil {
				return err
			}
			if oid != id && tx.isAncestor(oid, id) {
				return fmt.Errorf("add option %s to %s: %w", oid, id, domain.ErrSelfReference)
			}
			if l.ProjectID != "" {
				if err := tx.adopt(ActionBlockOptionAdd, oid, l.ProjectID, false); err != nil {
					return err
				}
			}
		}
		list, err = tx.updateBlock(ActionBlockOptionAdd, id, func(b domain.Block) (domain.Block, error) {
			return b.AddOptions(optionIDs...)
		})
		return err
	})
	return list, res, err
}

// BlockOptionsToggle flips the selection of options on list block id.
func (e *Editor) BlockOptionsToggle(ctx context.Context, id string, optionIDs ...string) (domain.Block, domain.Result, error) {
	return e.updateBlock(ctx, "block.options_toggle", ActionBlockOptionToggle, id, func(b domain.Block) (domain.Block, error) {
		return b.ToggleOptions(optionIDs...)
	})
}

// BlockOptionsRemove drops options from list block id.
func (e *Editor) BlockOptionsRemove(ctx context.Context, id string, optionIDs ...string) (domain.Block, domain.Result, error) {
	return e.updateBlock(ctx, "block.options_remove", ActionBlockOptionRemove, id, func(b domain.Block) (domain.Block, error) {
		return b.RemoveOptions(optionIDs...)
	})
}

// BlockRename renames id.
func (e *Editor) BlockRename(ctx context.Context, id, name string) (domain.Block, domain.Result, error) {
	return e.updateBlock(ctx, "block.rename", ActionBlockRename, id, func(b domain.Block) (domain.Block, error) {
		return b.SetName(name)
	})
}

// BlockSetColor sets the palette color of id.
func (e *Editor) BlockSetColor(ctx context.Context, id string, color int) (domain.Block, domain.Result, error) {
	return e.updateBlock(ctx, "block.set_color", ActionBlockSetColor, id, func(b domain.Block) (domain.Block, error) {
		return b.SetColor(color)
	})
}

// BlockSetRole sets the role annotation of id.
func (e *Editor) BlockSetRole(ctx context.Context, id, role string) (domain.Block, domain.Result, error) {
	return e.updateBlock(ctx, "block.set_role", ActionBlockSetRole, id, func(b domain.Block) (domain.Block, error) {
		return b.SetRole(role)
	})
}

// BlockSetSequence uploads seq through the sequence service and points id
// at it. The bases are written before the transaction starts, so a
// rejected change can leave an unreferenced sequence behind.
func (e *Editor) BlockSetSequence(ctx context.Context, id, seq string) (domain.Block, domain.Result, error) {
	if e.cfg.sequences == nil {
		return domain.Block{}, domain.Result{}, errors.New("no sequence service configured")
	}
	current, ok := e.State().Blocks[id]
	if !ok {
		return domain.Block{}, domain.Result{}, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	if current.IsFrozen() {
		return domain.Block{}, domain.Result{}, fmt.Errorf("block %s: %w", id, domain.ErrFrozen)
	}
	ref, err := e.cfg.sequences.Put(ctx, seq)
	if err != nil {
		return domain.Block{}, domain.Result{}, err
	}
	return e.updateBlock(ctx, "block.set_sequence", ActionBlockSetSequence, id, func(b domain.Block) (domain.Block, error) {
		return b.SetSequence(ref, domain.Source{Source: "user"})
	})
}

// BlockSequence returns the bases of id with its trim applied.
func (e *Editor) BlockSequence(ctx context.Context, id string) (string, error) {
	if e.cfg.sequences == nil {
		return "", errors.New("no sequence service configured")
	}
	b, ok := e.State().Blocks[id]
	if !ok {
		return "", domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
	}
	return e.cfg.sequences.BlockSequence(ctx, b)
}

func (e *Editor) updateBlock(ctx context.Context, op, actionType, id string, fn func(domain.Block) (domain.Block, error)) (domain.Block, domain.Result, error) {
	var updated domain.Block
	res, err := e.run(ctx, op, func(tx *txn) error {
		var err error
		updated, err = tx.updateBlock(actionType, id, fn)
		return err
	})
	return updated, res, err
}
