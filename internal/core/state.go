package core

import (
	"sort"

	"gencon/internal/redux"
	"gencon/pkg/domain"
)

// State is the editor's root state. Each map is replaced, never mutated,
// when its slice changes.
type State struct {
	Blocks   map[string]domain.Block
	Projects map[string]domain.Project
	Orders   map[string]domain.Order
}

func emptyState() State {
	return State{
		Blocks:   map[string]domain.Block{},
		Projects: map[string]domain.Project{},
		Orders:   map[string]domain.Order{},
	}
}

// Block returns the block with id.
func (s State) Block(id string) (domain.Block, bool) {
	b, ok := s.Blocks[id]
	return b, ok
}

// Project returns the project with id.
func (s State) Project(id string) (domain.Project, bool) {
	p, ok := s.Projects[id]
	return p, ok
}

// Order returns the order with id.
func (s State) Order(id string) (domain.Order, bool) {
	o, ok := s.Orders[id]
	return o, ok
}

// Action types dispatched by the editor.
const (
	ActionBlockCreate          = "BLOCK_CREATE"
	ActionBlockLoad            = "BLOCK_LOAD"
	ActionBlockStash           = "BLOCK_STASH"
	ActionBlockClone           = "BLOCK_CLONE"
	ActionBlockFreeze          = "BLOCK_FREEZE"
	ActionBlockDelete          = "BLOCK_DELETE"
	ActionBlockSetProject      = "BLOCK_SET_PROJECT"
	ActionBlockRename          = "BLOCK_RENAME"
	ActionBlockSetColor        = "BLOCK_SET_COLOR"
	ActionBlockSetRole         = "BLOCK_SET_ROLE"
	ActionBlockSetListBlock    = "BLOCK_SET_LIST"
	ActionBlockSetSequence     = "BLOCK_SET_SEQUENCE"
	ActionBlockComponentAdd    = "BLOCK_COMPONENT_ADD"
	ActionBlockComponentRemove = "BLOCK_COMPONENT_REMOVE"
	ActionBlockComponentMove   = "BLOCK_COMPONENT_MOVE"
	ActionBlockOptionAdd       = "BLOCK_OPTION_ADD"
	ActionBlockOptionRemove    = "BLOCK_OPTION_REMOVE"
	ActionBlockOptionToggle    = "BLOCK_OPTION_TOGGLE"

	ActionProjectCreate          = "PROJECT_CREATE"
	ActionProjectLoad            = "PROJECT_LOAD"
	ActionProjectRename          = "PROJECT_RENAME"
	ActionProjectAddConstruct    = "PROJECT_ADD_CONSTRUCT"
	ActionProjectRemoveConstruct = "PROJECT_REMOVE_CONSTRUCT"

	ActionOrderCreate        = "ORDER_CREATE"
	ActionOrderSetParameters = "ORDER_SET_PARAMETERS"
	ActionOrderSetName       = "ORDER_SET_NAME"
	ActionOrderSubmit        = "ORDER_SUBMIT"
)

// patch is the payload of every editor action: entities to upsert and ids
// to remove, per slice. A slice with nothing in the patch keeps its identity.
type patch struct {
	Blocks         []domain.Block
	RemoveBlocks   []string
	Projects       []domain.Project
	RemoveProjects []string
	Orders         []domain.Order
	RemoveOrders   []string
}

func applyPatch[T any](s map[string]T, upsert []T, remove []string, id func(T) string) map[string]T {
	if len(upsert) == 0 && len(remove) == 0 {
		return s
	}
	next := make(map[string]T, len(s)+len(upsert))
	for k, v := range s {
		next[k] = v
	}
	for _, v := range upsert {
		next[id(v)] = v
	}
	for _, k := range remove {
		delete(next, k)
	}
	return next
}

func reduceBlocks(s map[string]domain.Block, a redux.Action) map[string]domain.Block {
	p, ok := a.Payload.(patch)
	if !ok {
		return s
	}
	return applyPatch(s, p.Blocks, p.RemoveBlocks, func(b domain.Block) string { return b.ID })
}

func reduceProjects(s map[string]domain.Project, a redux.Action) map[string]domain.Project {
	p, ok := a.Payload.(patch)
	if !ok {
		return s
	}
	return applyPatch(s, p.Projects, p.RemoveProjects, func(p domain.Project) string { return p.ID })
}

func reduceOrders(s map[string]domain.Order, a redux.Action) map[string]domain.Order {
	p, ok := a.Payload.(patch)
	if !ok {
		return s
	}
	return applyPatch(s, p.Orders, p.RemoveOrders, func(o domain.Order) string { return o.ID })
}

// diff lists entity changes between two states, sorted for stable rule output.
func diff(before, after State) []domain.Change {
	var changes []domain.Change
	changes = append(changes, diffMap(domain.EntityBlock, before.Blocks, after.Blocks)...)
	changes = append(changes, diffMap(domain.EntityProject, before.Projects, after.Projects)...)
	changes = append(changes, diffMap(domain.EntityOrder, before.Orders, after.Orders)...)
	return changes
}

func diffMap[T any](entity domain.EntityType, before, after map[string]T) []domain.Change {
	if !redux.Changed(before, after) {
		return nil
	}
	ids := make(map[string]struct{}, len(after))
	for id := range before {
		ids[id] = struct{}{}
	}
	for id := range after {
		ids[id] = struct{}{}
	}
	var out []domain.Change
	for _, id := range sortedKeys(ids) {
		prev, had := before[id]
		next, has := after[id]
		switch {
		case !had && has:
			out = append(out, domain.Change{Entity: entity, Action: domain.ActionCreate, After: next})
		case had && !has:
			out = append(out, domain.Change{Entity: entity, Action: domain.ActionDelete, Before: prev})
		case redux.Changed(prev, next):
			out = append(out, domain.Change{Entity: entity, Action: domain.ActionUpdate, Before: prev, After: next})
		}
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
