package memory

import (
	"context"
	"testing"

	"gencon/pkg/domain"
)

func sampleRollup() domain.Rollup {
	project := domain.NewProject("p")
	part := domain.NewBlock("part")
	part.ProjectID = project.ID
	construct := domain.NewBlock("construct")
	construct.ProjectID = project.ID
	construct.Components = []string{part.ID}
	project.Components = []string{construct.ID}
	return domain.Rollup{
		Project: project,
		Blocks:  map[string]domain.Block{part.ID: part, construct.ID: construct},
	}
}

func TestSaveRollupIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	rollup := sampleRollup()

	for want := 1; want <= 3; want++ {
		got, err := store.SaveRollup(ctx, rollup)
		if err != nil {
			t.Fatalf("SaveRollup: %v", err)
		}
		if got != want {
			t.Fatalf("expected version %d, got %d", want, got)
		}
	}
	loaded, err := store.LoadRollup(ctx, rollup.Project.ID)
	if err != nil {
		t.Fatalf("LoadRollup: %v", err)
	}
	if loaded.Project.Version != 3 {
		t.Fatalf("expected stored project version 3, got %d", loaded.Project.Version)
	}
	if len(loaded.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(loaded.Blocks))
	}
}

func TestLoadedRollupDoesNotAliasStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	rollup := sampleRollup()
	if _, err := store.SaveRollup(ctx, rollup); err != nil {
		t.Fatalf("SaveRollup: %v", err)
	}
	first, _ := store.LoadRollup(ctx, rollup.Project.ID)
	first.Project.Components[0] = "mutated"
	second, _ := store.LoadRollup(ctx, rollup.Project.ID)
	if second.Project.Components[0] == "mutated" {
		t.Fatalf("expected stored rollup to be isolated from callers")
	}
}

func TestSaveRollupRejectsInvalid(t *testing.T) {
	rollup := sampleRollup()
	rollup.Project.Components = append(rollup.Project.Components, "missing")
	if _, err := NewStore().SaveRollup(context.Background(), rollup); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing block, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	a, b := sampleRollup(), sampleRollup()
	for _, r := range []domain.Rollup{a, b} {
		if _, err := store.SaveRollup(ctx, r); err != nil {
			t.Fatalf("SaveRollup: %v", err)
		}
	}
	projects, err := store.ListProjects(ctx)
	if err != nil || len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d (%v)", len(projects), err)
	}
	if err := store.DeleteRollup(ctx, a.Project.ID); err != nil {
		t.Fatalf("DeleteRollup: %v", err)
	}
	if _, err := store.LoadRollup(ctx, a.Project.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.DeleteRollup(ctx, a.Project.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}
