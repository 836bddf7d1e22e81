// Package memory provides a process-local SaveTracker.
package memory

import (
	"context"
	"sync"
	"time"

	"gencon/pkg/domain"
)

var _ domain.SaveTracker = (*Tracker)(nil)

// Tracker keeps save outcomes per project in memory.
type Tracker struct {
	mu     sync.RWMutex
	status map[string]domain.SaveStatus
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{status: make(map[string]domain.SaveStatus)}
}

// NoteSave records a successful save of version.
func (t *Tracker) NoteSave(_ context.Context, projectID string, version int, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.status[projectID]
	s.Updated = at
	s.Version = version
	t.status[projectID] = s
	return nil
}

// NoteFailure records a failed save attempt.
func (t *Tracker) NoteFailure(_ context.Context, projectID string, cause error, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.status[projectID]
	s.LastFailed = at
	if cause != nil {
		s.LastErr = cause.Error()
	}
	t.status[projectID] = s
	return nil
}

// Status returns the resolved status; unknown projects report a zero status
// that counts as successful.
func (t *Tracker) Status(_ context.Context, projectID string) (domain.SaveStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status[projectID].Resolve(), nil
}
