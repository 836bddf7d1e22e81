package domain

import (
	"context"
	"time"
)

// RollupStore is the durable home of project rollups. Implementations store
// the full rollup on every save.
type RollupStore interface {
	// SaveRollup persists the rollup and returns the stored project version,
	// one greater than the previously stored version.
	SaveRollup(ctx context.Context, rollup Rollup) (int, error)
	LoadRollup(ctx context.Context, projectID string) (Rollup, error)
	ListProjects(ctx context.Context) ([]Project, error)
	DeleteRollup(ctx context.Context, projectID string) error
}

// SaveStatus is the last known persistence outcome for a project.
type SaveStatus struct {
	Updated        time.Time `json:"updated"`
	Version        int       `json:"version"`
	LastFailed     time.Time `json:"lastFailed"`
	LastErr        string    `json:"lastErr,omitempty"`
	SaveSuccessful bool      `json:"saveSuccessful"`
}

// SaveTracker records save outcomes per project so the UI can show
// "saved" or "could not save" indicators.
type SaveTracker interface {
	NoteSave(ctx context.Context, projectID string, version int, at time.Time) error
	NoteFailure(ctx context.Context, projectID string, cause error, at time.Time) error
	Status(ctx context.Context, projectID string) (SaveStatus, error)
}

// Resolve fills SaveSuccessful from the recorded timestamps: a save is
// successful when no failure happened after the last recorded save.
func (s SaveStatus) Resolve() SaveStatus {
	s.SaveSuccessful = !s.LastFailed.After(s.Updated)
	return s
}
