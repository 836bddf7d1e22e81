package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gencon/pkg/domain"
)

// persist is the autosave callback. It saves every unfrozen project whose
// rollup changed since it was last saved or loaded.
func (e *Editor) persist(ctx context.Context, st State) error {
	if e.cfg.rollups == nil {
		return nil
	}
	var errs []error
	for _, id := range sortedKeys(st.Projects) {
		if st.Projects[id].Rules.Frozen {
			continue
		}
		if _, _, err := e.saveProject(ctx, st, id, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Editor) saveProject(ctx context.Context, st State, projectID string, force bool) (int, bool, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	rollup, err := RollupFromState(st, projectID)
	if err != nil {
		return 0, false, err
	}
	current := e.version(projectID)
	rollup.Project.Version = current
	if !force && !e.instances.IsRollupNew(rollup) {
		return current, false, nil
	}

	version, err := e.cfg.rollups.SaveRollup(ctx, rollup)
	now := e.cfg.clock.Now().UTC()
	if err != nil {
		e.cfg.logger.Warn("project save failed", "project", projectID, "error", err)
		e.noteFailure(ctx, projectID, err, now)
		return 0, false, fmt.Errorf("save project %s: %w", projectID, err)
	}
	e.setVersion(projectID, version)
	rollup.Project.Version = version
	e.instances.Record(rollup)
	e.noteSave(ctx, projectID, version, now)
	e.cfg.logger.Debug("project saved", "project", projectID, "version", version)
	return version, true, nil
}

func (e *Editor) noteSave(ctx context.Context, projectID string, version int, at time.Time) {
	if e.cfg.tracker == nil {
		return
	}
	if err := e.cfg.tracker.NoteSave(ctx, projectID, version, at); err != nil {
		e.cfg.logger.Warn("record save state failed", "project", projectID, "error", err)
	}
}

func (e *Editor) noteFailure(ctx context.Context, projectID string, cause error, at time.Time) {
	if e.cfg.tracker == nil {
		return
	}
	if err := e.cfg.tracker.NoteFailure(ctx, projectID, cause, at); err != nil {
		e.cfg.logger.Warn("record save state failed", "project", projectID, "error", err)
	}
}

// ProjectList returns the projects held by the rollup store.
func (e *Editor) ProjectList(ctx context.Context) ([]domain.Project, error) {
	if e.cfg.rollups == nil {
		return nil, errNoRollupStore
	}
	return e.cfg.rollups.ListProjects(ctx)
}
