package combinatorics

import (
	"errors"
	"reflect"
	"testing"

	"gencon/pkg/domain"
)

func part(id string, length int) domain.Block {
	b := domain.NewBlock(id)
	b.ID = id
	b.Sequence = domain.SequenceRef{MD5: "md5-" + id, Length: length}
	return b
}

func construct(id string, components ...string) domain.Block {
	b := domain.NewBlock(id)
	b.ID = id
	b.Components = components
	return b
}

func list(id string, options ...domain.Option) domain.Block {
	b := domain.NewBlock(id)
	b.ID = id
	b.Rules.List = true
	b.Options = options
	return b
}

func lookup(blocks ...domain.Block) MapLookup {
	out := MapLookup{}
	for _, b := range blocks {
		out[b.ID] = b
	}
	return out
}

func TestScenarioFreshBlockBecomesSpecWithSequence(t *testing.T) {
	b := domain.NewBlock("B")
	l := lookup(b)
	spec, err := IsSpec(l, b.ID)
	if err != nil || spec {
		t.Fatalf("fresh block: spec=%v err=%v", spec, err)
	}
	b, err = b.SetSequence(domain.SequenceRef{MD5: "abc", Length: 12}, domain.Source{})
	if err != nil {
		t.Fatalf("set sequence: %v", err)
	}
	l[b.ID] = b
	spec, err = IsSpec(l, b.ID)
	if err != nil || !spec {
		t.Fatalf("sequenced block: spec=%v err=%v", spec, err)
	}
}

func scenarioB() MapLookup {
	return lookup(
		construct("root", "p1", "L", "p2"),
		part("p1", 10),
		part("p2", 10),
		list("L",
			domain.Option{ID: "opt1", Selected: true},
			domain.Option{ID: "opt2", Selected: true},
			domain.Option{ID: "opt3", Selected: false},
		),
		part("opt1", 5),
		part("opt2", 5),
		part("opt3", 5),
	)
}

func TestScenarioListBlockPositions(t *testing.T) {
	l := scenarioB()
	positions, err := PositionalCombinations(l, "root", false)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	want := [][]string{{"p1"}, {"opt1", "opt2"}, {"p2"}}
	if !reflect.DeepEqual(positions, want) {
		t.Fatalf("positions = %v, want %v", positions, want)
	}
	if n := NumberOfCombinations(positions); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	combos, err := AllCombinations(l, "root")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	wantCombos := [][]string{{"p1", "opt1", "p2"}, {"p1", "opt2", "p2"}}
	if !reflect.DeepEqual(combos, wantCombos) {
		t.Fatalf("combos = %v, want %v", combos, wantCombos)
	}

	all, err := PositionalCombinations(l, "root", true)
	if err != nil {
		t.Fatalf("positions with unselected: %v", err)
	}
	if got := all[1]; !reflect.DeepEqual(got, []string{"opt1", "opt2", "opt3"}) {
		t.Fatalf("unselected options = %v", got)
	}
}

func TestCardinalityMatchesProduct(t *testing.T) {
	blocks := []domain.Block{construct("root", "A", "B", "C")}
	sizes := map[string]int{"A": 2, "B": 3, "C": 4}
	for _, name := range []string{"A", "B", "C"} {
		var opts []domain.Option
		for i := 0; i < sizes[name]; i++ {
			id := name + string(rune('0'+i))
			opts = append(opts, domain.Option{ID: id, Selected: true})
			blocks = append(blocks, part(id, 3))
		}
		opts = append(opts, domain.Option{ID: name + "x", Selected: false})
		blocks = append(blocks, part(name+"x", 3))
		blocks = append(blocks, list(name, opts...))
	}
	l := lookup(blocks...)

	positions, err := PositionalCombinations(l, "root", false)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if n := NumberOfCombinations(positions); n != 24 {
		t.Fatalf("count = %d, want 24", n)
	}
	combos, err := AllCombinations(l, "root")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(combos) != 24 {
		t.Fatalf("len = %d, want 24", len(combos))
	}
	seen := map[string]bool{}
	for _, c := range combos {
		if len(c) != 3 {
			t.Fatalf("combination length %d", len(c))
		}
		key := c[0] + c[1] + c[2]
		if seen[key] {
			t.Fatalf("duplicate combination %v", c)
		}
		seen[key] = true
	}
	if !reflect.DeepEqual(combos[0], []string{"A0", "B0", "C0"}) || !reflect.DeepEqual(combos[1], []string{"A0", "B0", "C1"}) {
		t.Fatalf("order not deterministic: %v %v", combos[0], combos[1])
	}
}

func TestFlattenInlinesNestedConstructs(t *testing.T) {
	l := lookup(
		construct("root", "a", "inner", "d"),
		construct("inner", "b", "L"),
		part("a", 1), part("b", 1), part("d", 1),
		list("L", domain.Option{ID: "a", Selected: true}),
	)
	flat, err := Flatten(l, "root")
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	var ids []string
	for _, b := range flat {
		ids = append(ids, b.ID)
	}
	if want := []string{"a", "b", "L", "d"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("flatten = %v, want %v", ids, want)
	}
}

func TestEmptiedListPropagatesZero(t *testing.T) {
	l := lookup(construct("root", "p", "L"), part("p", 4), list("L"))
	positions, err := PositionalCombinations(l, "root", false)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if n := NumberOfCombinations(positions); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	if spec, _ := IsSpec(l, "root"); spec {
		t.Fatalf("emptied list should not be a spec")
	}
}

func TestAllCombinationsRequiresSpec(t *testing.T) {
	l := lookup(construct("root", "p", "q"), part("p", 4), part("q", 0))
	if _, err := AllCombinations(l, "root"); !errors.Is(err, domain.ErrNotSpec) {
		t.Fatalf("expected ErrNotSpec, got %v", err)
	}
}

func TestListOptionMustBeLeafSpec(t *testing.T) {
	l := lookup(
		construct("root", "L"),
		list("L", domain.Option{ID: "c", Selected: true}),
		construct("c", "p"),
		part("p", 4),
	)
	if spec, err := IsSpec(l, "root"); err != nil || spec {
		t.Fatalf("construct option: spec=%v err=%v", spec, err)
	}
}

func TestMissingBlock(t *testing.T) {
	l := lookup(construct("root", "ghost"))
	_, err := Flatten(l, "root")
	var missing *MissingBlockError
	if !errors.As(err, &missing) || missing.ID != "ghost" || missing.Parent != "root" {
		t.Fatalf("expected missing ghost, got %v", err)
	}
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFlattenDetectsCycles(t *testing.T) {
	l := lookup(construct("a", "b"), construct("b", "a"))
	if _, err := Flatten(l, "a"); !errors.Is(err, domain.ErrSelfReference) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestCombinationsCap(t *testing.T) {
	wide := make([]string, 1000)
	positions := [][]string{wide, wide, wide}
	if _, err := Combinations(positions); !errors.Is(err, ErrTooManyCombinations) {
		t.Fatalf("expected cap error, got %v", err)
	}
}

func TestSample(t *testing.T) {
	combos := [][]string{{"a"}, {"b"}, {"c"}}
	got, err := Sample(combos, []int{2, 0})
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if !reflect.DeepEqual(got, [][]string{{"c"}, {"a"}}) {
		t.Fatalf("sample = %v", got)
	}
	if _, err := Sample(combos, []int{3}); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Fatalf("expected range error, got %v", err)
	}
}
