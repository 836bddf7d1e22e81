package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/require"

	"gencon/internal/autosave"
	"gencon/internal/infra/persistence/memory"
	memtracker "gencon/internal/infra/savestate/memory"
	"gencon/pkg/domain"
)

func createProject(t *testing.T, e *Editor, d design) domain.Project {
	t.Helper()
	p := domain.NewProject("plasmids")
	p.Components = []string{d.construct}
	p, _, err := e.ProjectCreate(context.Background(), p)
	require.NoError(t, err)
	return p
}

func TestProjectSaveSkipsUnchangedRollups(t *testing.T) {
	store := memory.NewStore()
	tracker := memtracker.NewTracker()
	e := newTestEditor(t, WithRollupStore(store), WithSaveTracker(tracker))
	ctx := context.Background()
	p := createProject(t, e, buildDesign(t, e))

	isNew, err := e.IsRollupNew(p.ID)
	require.NoError(t, err)
	require.True(t, isNew)

	version, saved, err := e.ProjectSave(ctx, p.ID, false)
	require.NoError(t, err)
	require.True(t, saved)
	require.Equal(t, 1, version)

	version, saved, err = e.ProjectSave(ctx, p.ID, false)
	require.NoError(t, err)
	require.False(t, saved)
	require.Equal(t, 1, version)

	version, saved, err = e.ProjectSave(ctx, p.ID, true)
	require.NoError(t, err)
	require.True(t, saved)
	require.Equal(t, 2, version)

	_, _, err = e.ProjectRename(ctx, p.ID, "renamed")
	require.NoError(t, err)
	isNew, err = e.IsRollupNew(p.ID)
	require.NoError(t, err)
	require.True(t, isNew)

	status, err := e.SaveStatus(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, status.Version)
	require.True(t, status.SaveSuccessful)

	rollup, err := e.ProjectRollup(p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, rollup.Project.Version)
	require.Len(t, rollup.Blocks, 5)

	projects, err := e.ProjectList(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
}

type failingStore struct {
	domain.RollupStore
}

func (failingStore) SaveRollup(context.Context, domain.Rollup) (int, error) {
	return 0, errors.New("disk full")
}

func TestProjectSaveFailureIsTracked(t *testing.T) {
	tracker := memtracker.NewTracker()
	e := newTestEditor(t, WithRollupStore(failingStore{memory.NewStore()}), WithSaveTracker(tracker))
	ctx := context.Background()
	p := createProject(t, e, buildDesign(t, e))

	_, saved, err := e.ProjectSave(ctx, p.ID, false)
	require.Error(t, err)
	require.False(t, saved)

	status, err := e.SaveStatus(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, status.SaveSuccessful)
	require.Contains(t, status.LastErr, "disk full")

	require.Error(t, e.Save(ctx))
	require.True(t, e.IsDirty())
}

func TestProjectLoadPurgesHistory(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	author := newTestEditor(t, WithRollupStore(store))
	d := buildDesign(t, author)
	p := createProject(t, author, d)
	_, _, err := author.ProjectSave(ctx, p.ID, false)
	require.NoError(t, err)

	e := newTestEditor(t, WithRollupStore(store))
	rollup, _, err := e.ProjectLoad(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, rollup.Project.Version)
	require.Len(t, e.State().Blocks, 5)
	require.Zero(t, e.UndoStatus().Past)
	require.False(t, e.IsDirty())
	isNew, err := e.IsRollupNew(p.ID)
	require.NoError(t, err)
	require.False(t, isNew)

	_, _, err = e.BlockRename(ctx, d.part, "pBad")
	require.NoError(t, err)
	require.True(t, e.IsDirty())
	require.Equal(t, 1, e.UndoStatus().Past)

	// unsaved edits are written before the project is read back
	rollup, _, err = e.ProjectLoad(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, rollup.Project.Version)
	require.Equal(t, "pBad", e.State().Blocks[d.part].Metadata.Name)
	require.Zero(t, e.UndoStatus().Past)
	require.False(t, e.IsDirty())

	_, _, err = e.ProjectLoad(ctx, "missing")
	require.True(t, domain.IsNotFound(err))

	unstored := newTestEditor(t)
	_, _, err = unstored.ProjectLoad(ctx, p.ID)
	require.ErrorIs(t, err, errNoRollupStore)
}

func TestLoadRollupRejectsInvalid(t *testing.T) {
	e := newTestEditor(t)
	p := domain.NewProject("broken")
	p.Components = []string{"missing"}
	_, err := e.LoadRollup(context.Background(), domain.Rollup{Project: p})
	require.True(t, domain.IsNotFound(err))
	require.Empty(t, e.State().Projects)
}

func TestProjectConstructs(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()
	d := buildDesign(t, e)
	p := createProject(t, e, d)

	extra, _, err := e.BlockCreate(ctx, domain.NewBlock("extra"))
	require.NoError(t, err)
	updated, _, err := e.ProjectAddConstruct(ctx, p.ID, extra.ID, 0, false)
	require.NoError(t, err)
	require.Equal(t, []string{extra.ID, d.construct}, updated.Components)
	require.Equal(t, p.ID, e.State().Blocks[extra.ID].ProjectID)

	// promoting a component removes it from its construct
	updated, _, err = e.ProjectAddConstruct(ctx, p.ID, d.part, -1, false)
	require.NoError(t, err)
	require.Equal(t, []string{extra.ID, d.construct, d.part}, updated.Components)
	require.Equal(t, []string{d.list}, e.State().Blocks[d.construct].Components)

	updated, _, err = e.ProjectRemoveConstruct(ctx, p.ID, extra.ID)
	require.NoError(t, err)
	require.Equal(t, []string{d.construct, d.part}, updated.Components)
	require.Contains(t, e.State().Blocks, extra.ID)
}

func TestAutosaveWritesDirtyProjects(t *testing.T) {
	mock := clock.NewMock()
	store := memory.NewStore()
	e := newTestEditor(t,
		WithRollupStore(store),
		WithClock(mock),
		WithAutosave(20*time.Second, 3*time.Second),
	)
	ctx := context.Background()
	require.False(t, e.IsDirty())

	p := createProject(t, e, buildDesign(t, e))
	require.True(t, e.IsDirty())
	require.Greater(t, int64(e.TimeUnsaved()), int64(0))

	step(mock, time.Second)
	_, err := store.LoadRollup(ctx, p.ID)
	require.True(t, domain.IsNotFound(err))

	step(mock, 3*time.Second)
	step(mock, time.Second)
	require.Eventually(t, func() bool {
		_, err := store.LoadRollup(ctx, p.ID)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !e.IsDirty() }, time.Second, 5*time.Millisecond)
	require.Zero(t, e.TimeUnsaved())

	e.Undo()
	require.True(t, e.IsDirty())
}

func TestFrozenProjectsAreNotAutosaved(t *testing.T) {
	store := memory.NewStore()
	e := newTestEditor(t, WithRollupStore(store))
	ctx := context.Background()

	sample := domain.NewProject("sample")
	sample.Rules.Frozen = true
	_, _, err := e.ProjectCreate(ctx, sample)
	require.NoError(t, err)
	require.NoError(t, e.Save(ctx))

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Empty(t, projects)
}

// tickingRule lets the autosave windows elapse while an operation is being
// checked, then blocks it.
type tickingRule struct {
	mock      *clock.Mock
	forbidden string
}

func (tickingRule) Name() string { return "ticking" }

func (r tickingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, b := range changedBlocks(changes) {
		if b.Metadata.Name != r.forbidden {
			continue
		}
		step(r.mock, 25*time.Second)
		res.Violations = append(res.Violations, domain.Violation{
			Rule: "ticking", Severity: domain.SeverityBlock, Entity: domain.EntityBlock, EntityID: b.ID,
		})
	}
	return res, nil
}

func TestAutosaveNeverStoresRejectedState(t *testing.T) {
	mock := clock.NewMock()
	store := memory.NewStore()
	engine := NewDefaultRulesEngine()
	engine.Register(tickingRule{mock: mock, forbidden: "terminator"})
	e := newTestEditor(t,
		WithRollupStore(store),
		WithClock(mock),
		WithRulesEngine(engine),
		WithAutosave(20*time.Second, 3*time.Second),
	)
	ctx := context.Background()
	d := buildDesign(t, e)
	p := createProject(t, e, d)
	require.NoError(t, e.Save(ctx))
	require.False(t, e.IsDirty())

	_, _, err := e.BlockRename(ctx, d.part, "terminator")
	var violation domain.RuleViolationError
	require.True(t, errors.As(err, &violation))
	e.Close()

	stored, err := store.LoadRollup(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "promoter", stored.Blocks[d.part].Metadata.Name)
	require.Equal(t, "promoter", e.State().Blocks[d.part].Metadata.Name)
}

func TestSaveWaitsForUserTransaction(t *testing.T) {
	store := memory.NewStore()
	e := newTestEditor(t, WithRollupStore(store))
	ctx := context.Background()
	d := buildDesign(t, e)
	p := createProject(t, e, d)
	require.NoError(t, e.Save(ctx))

	e.BeginTransaction()
	_, _, err := e.BlockRename(ctx, d.part, "pTet")
	require.NoError(t, err)
	require.ErrorIs(t, e.Save(ctx), autosave.ErrDeferred)
	require.True(t, e.IsDirty())
	stored, err := store.LoadRollup(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "promoter", stored.Blocks[d.part].Metadata.Name)

	require.NoError(t, e.CommitTransaction())
	require.NoError(t, e.Save(ctx))
	stored, err = store.LoadRollup(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "pTet", stored.Blocks[d.part].Metadata.Name)
	require.False(t, e.IsDirty())
}
