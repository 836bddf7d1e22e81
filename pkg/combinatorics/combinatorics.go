// Package combinatorics expands constructs containing list blocks into the
// concrete designs they describe. Every function is read-only over a Lookup.
package combinatorics

import (
	"errors"
	"fmt"
	"math"

	"gencon/pkg/domain"
)

// MaxCombinations bounds AllCombinations.
const MaxCombinations = 10_000_000

// ErrTooManyCombinations is returned when a product exceeds MaxCombinations.
var ErrTooManyCombinations = errors.New("too many combinations")

// Lookup resolves blocks by id.
type Lookup interface {
	Block(id string) (domain.Block, bool)
}

// MapLookup adapts a block map.
type MapLookup map[string]domain.Block

// Block implements Lookup.
func (m MapLookup) Block(id string) (domain.Block, bool) {
	b, ok := m[id]
	return b, ok
}

// MissingBlockError names a referenced id absent from the Lookup.
type MissingBlockError struct {
	ID     string
	Parent string
}

func (e *MissingBlockError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("block %s not found", e.ID)
	}
	return fmt.Sprintf("block %s referenced by %s not found", e.ID, e.Parent)
}

// Unwrap lets domain.IsNotFound match.
func (e *MissingBlockError) Unwrap() error {
	return domain.ErrNotFound{Entity: domain.EntityBlock, ID: e.ID}
}

func get(l Lookup, id, parent string) (domain.Block, error) {
	b, ok := l.Block(id)
	if !ok {
		return domain.Block{}, &MissingBlockError{ID: id, Parent: parent}
	}
	return b, nil
}

// Flatten returns the non-construct blocks under id in depth-first order.
// Constructs are inlined; list blocks are kept as single positions. A block
// without components flattens to itself.
func Flatten(l Lookup, id string) ([]domain.Block, error) {
	root, err := get(l, id, "")
	if err != nil {
		return nil, err
	}
	var out []domain.Block
	if err := flatten(l, root, map[string]bool{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(l Lookup, b domain.Block, path map[string]bool, out *[]domain.Block) error {
	if !b.IsConstruct() {
		*out = append(*out, b)
		return nil
	}
	if path[b.ID] {
		return fmt.Errorf("construct %s: %w", b.ID, domain.ErrSelfReference)
	}
	path[b.ID] = true
	defer delete(path, b.ID)
	for _, cid := range b.Components {
		child, err := get(l, cid, b.ID)
		if err != nil {
			return err
		}
		if err := flatten(l, child, path, out); err != nil {
			return err
		}
	}
	return nil
}

// PositionalCombinations maps each flattened position of id to its
// candidate block ids: the block itself, or a list block's options
// (selected only unless includeUnselected). An emptied list block yields an
// empty position.
func PositionalCombinations(l Lookup, id string, includeUnselected bool) ([][]string, error) {
	flat, err := Flatten(l, id)
	if err != nil {
		return nil, err
	}
	positions := make([][]string, 0, len(flat))
	for _, b := range flat {
		if !b.IsList() {
			positions = append(positions, []string{b.ID})
			continue
		}
		opts := b.OptionIDs(includeUnselected)
		for _, oid := range opts {
			if _, err := get(l, oid, b.ID); err != nil {
				return nil, err
			}
		}
		positions = append(positions, opts)
	}
	return positions, nil
}

// NumberOfCombinations is the product of the position sizes. Any empty
// position makes it zero; products past math.MaxInt saturate.
func NumberOfCombinations(positions [][]string) int {
	n := 1
	for _, p := range positions {
		if len(p) == 0 {
			return 0
		}
		if n > math.MaxInt/len(p) {
			n = math.MaxInt
			continue
		}
		n *= len(p)
	}
	return n
}

// IsSpec reports whether every position of id is fully specified: leaf
// parts carry sequence, and list blocks have at least one selected option,
// each of which is a leaf part with sequence.
func IsSpec(l Lookup, id string) (bool, error) {
	flat, err := Flatten(l, id)
	if err != nil {
		return false, err
	}
	for _, b := range flat {
		if !b.IsList() {
			if !isSpecPart(b) {
				return false, nil
			}
			continue
		}
		selected := b.OptionIDs(false)
		if len(selected) == 0 {
			return false, nil
		}
		for _, oid := range selected {
			opt, err := get(l, oid, b.ID)
			if err != nil {
				return false, err
			}
			if !isSpecPart(opt) {
				return false, nil
			}
		}
	}
	return true, nil
}

func isSpecPart(b domain.Block) bool {
	return !b.IsList() && !b.IsConstruct() && b.Sequence.Length > 0
}

// AllCombinations expands id into every concrete design, one block id per
// position, in option order. id must be a spec.
func AllCombinations(l Lookup, id string) ([][]string, error) {
	spec, err := IsSpec(l, id)
	if err != nil {
		return nil, err
	}
	if !spec {
		return nil, fmt.Errorf("construct %s: %w", id, domain.ErrNotSpec)
	}
	positions, err := PositionalCombinations(l, id, false)
	if err != nil {
		return nil, err
	}
	return Combinations(positions)
}

// Combinations is the Cartesian product of positions. The last position
// varies fastest.
func Combinations(positions [][]string) ([][]string, error) {
	total := NumberOfCombinations(positions)
	if total > MaxCombinations {
		return nil, fmt.Errorf("%d combinations exceeds %d: %w", total, MaxCombinations, ErrTooManyCombinations)
	}
	if len(positions) == 0 || total == 0 {
		return [][]string{}, nil
	}
	out := make([][]string, 0, total)
	current := make([]string, len(positions))
	var walk func(pos int)
	walk = func(pos int) {
		for _, id := range positions[pos] {
			current[pos] = id
			if pos == len(positions)-1 {
				out = append(out, append([]string(nil), current...))
				continue
			}
			walk(pos + 1)
		}
	}
	walk(0)
	return out, nil
}

// Sample returns the combinations at the given indices, in index order.
// Out of range indices are an error.
func Sample(combos [][]string, indices []int) ([][]string, error) {
	out := make([][]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(combos) {
			return nil, fmt.Errorf("combination %d of %d: %w", idx, len(combos), domain.ErrIndexOutOfRange)
		}
		out = append(out, combos[idx])
	}
	return out, nil
}
