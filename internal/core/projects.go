package core

import (
	"context"
	"errors"
	"fmt"

	"gencon/pkg/domain"
)

var errNoRollupStore = errors.New("no rollup store configured")

// ProjectCreate adds a new project. An empty id is generated.
func (e *Editor) ProjectCreate(ctx context.Context, project domain.Project) (domain.Project, domain.Result, error) {
	created := project.Copy()
	if created.ID == "" {
		created.ID = domain.NewID()
	}
	if created.Components == nil {
		created.Components = []string{}
	}
	res, err := e.run(ctx, "project.create", func(tx *txn) error {
		if _, exists := tx.state().Projects[created.ID]; exists {
			return fmt.Errorf("project %s: %w", created.ID, domain.ErrDuplicateID)
		}
		for _, cid := range created.Components {
			if err := tx.adopt(ActionProjectCreate, cid, created.ID, false); err != nil {
				return err
			}
		}
		tx.apply(ActionProjectCreate, patch{Projects: []domain.Project{created}})
		return nil
	})
	return created, res, err
}

// ProjectLoad replaces the editor's copy of projectID with the stored
// rollup. Unsaved changes are saved first. Loading clears undo history and
// leaves the editor clean.
func (e *Editor) ProjectLoad(ctx context.Context, projectID string) (domain.Rollup, domain.Result, error) {
	if e.cfg.rollups == nil {
		return domain.Rollup{}, domain.Result{}, errNoRollupStore
	}
	if e.IsDirty() {
		if err := e.saver.Save(ctx); err != nil {
			return domain.Rollup{}, domain.Result{}, fmt.Errorf("save before loading %s: %w", projectID, err)
		}
	}
	rollup, err := e.cfg.rollups.LoadRollup(ctx, projectID)
	if err != nil {
		return domain.Rollup{}, domain.Result{}, err
	}
	res, err := e.LoadRollup(ctx, rollup)
	return rollup, res, err
}

// LoadRollup puts a rollup into the state as the saved copy of its project.
// It does not read or write the rollup store.
func (e *Editor) LoadRollup(ctx context.Context, rollup domain.Rollup) (domain.Result, error) {
	if err := rollup.Validate(); err != nil {
		return domain.Result{}, err
	}
	res, err := e.run(ctx, "project.load", func(tx *txn) error {
		blocks := make([]domain.Block, 0, len(rollup.Blocks))
		for _, id := range rollup.BlockIDs() {
			blocks = append(blocks, prepareBlock(rollup.Blocks[id]))
		}
		project := rollup.Project.Copy()
		if project.Components == nil {
			project.Components = []string{}
		}
		tx.loadPurging(ActionProjectLoad, patch{Blocks: blocks, Projects: []domain.Project{project}})
		return nil
	})
	if err != nil {
		return res, err
	}
	e.setVersion(rollup.Project.ID, rollup.Project.Version)
	if loaded, err := e.ProjectRollup(rollup.Project.ID); err == nil {
		e.instances.Record(loaded)
	}
	return res, nil
}

// ProjectRename renames projectID.
func (e *Editor) ProjectRename(ctx context.Context, projectID, name string) (domain.Project, domain.Result, error) {
	var updated domain.Project
	res, err := e.run(ctx, "project.rename", func(tx *txn) error {
		var err error
		updated, err = tx.updateProject(ActionProjectRename, projectID, func(p domain.Project) (domain.Project, error) {
			return p.SetName(name)
		})
		return err
	})
	return updated, res, err
}

// ProjectAddConstruct makes constructID a top-level construct of projectID
// at index, removing it from any owner. A construct from another project is
// rejected unless forceProjectID is set.
func (e *Editor) ProjectAddConstruct(ctx context.Context, projectID, constructID string, index int, forceProjectID bool) (domain.Project, domain.Result, error) {
	var updated domain.Project
	res, err := e.run(ctx, "project.add_construct", func(tx *txn) error {
		if _, err := tx.project(projectID); err != nil {
			return err
		}
		if err := tx.adopt(ActionProjectAddConstruct, constructID, projectID, forceProjectID); err != nil {
			return err
		}
		if err := tx.detach(ActionProjectAddConstruct, constructID); err != nil {
			return err
		}
		var err error
		updated, err = tx.updateProject(ActionProjectAddConstruct, projectID, func(p domain.Project) (domain.Project, error) {
			return p.AddComponentsAt(index, constructID)
		})
		return err
	})
	return updated, res, err
}

// ProjectRemoveConstruct removes constructID from projectID. The construct
// stays in the state.
func (e *Editor) ProjectRemoveConstruct(ctx context.Context, projectID, constructID string) (domain.Project, domain.Result, error) {
	var updated domain.Project
	res, err := e.run(ctx, "project.remove_construct", func(tx *txn) error {
		var err error
		updated, err = tx.updateProject(ActionProjectRemoveConstruct, projectID, func(p domain.Project) (domain.Project, error) {
			return p.RemoveComponents(constructID)
		})
		return err
	})
	return updated, res, err
}

// ProjectRollup returns the project and every block it transitively owns,
// stamped with the last saved version.
func (e *Editor) ProjectRollup(projectID string) (domain.Rollup, error) {
	rollup, err := RollupFromState(e.State(), projectID)
	if err != nil {
		return domain.Rollup{}, err
	}
	rollup.Project.Version = e.version(projectID)
	return rollup, nil
}

// ProjectSave saves projectID now. Unless force is set, a rollup identical
// to the last one saved or loaded is skipped and saved is false.
func (e *Editor) ProjectSave(ctx context.Context, projectID string, force bool) (version int, saved bool, err error) {
	if e.cfg.rollups == nil {
		return 0, false, errNoRollupStore
	}
	ctx, span := e.cfg.tracer.Start(ctx, "project.save")
	start := e.cfg.clock.Now()
	version, saved, err = e.saveProject(ctx, e.State(), projectID, force)
	e.cfg.metrics.Observe(ctx, "project.save", err == nil, e.cfg.clock.Now().Sub(start))
	span.End(err)
	return version, saved, err
}

// IsRollupNew reports whether projectID differs from its last saved or
// loaded rollup.
func (e *Editor) IsRollupNew(projectID string) (bool, error) {
	rollup, err := e.ProjectRollup(projectID)
	if err != nil {
		return false, err
	}
	return e.instances.IsRollupNew(rollup), nil
}

// SaveStatus reports the last recorded save outcome of projectID.
func (e *Editor) SaveStatus(ctx context.Context, projectID string) (domain.SaveStatus, error) {
	if e.cfg.tracker == nil {
		return domain.SaveStatus{Version: e.version(projectID)}.Resolve(), nil
	}
	return e.cfg.tracker.Status(ctx, projectID)
}
