package domain

import (
	"fmt"
	"reflect"
	"time"
)

// ProjectMetadata carries descriptive project fields.
type ProjectMetadata struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProjectRules holds project flags. Frozen projects are read-only samples.
type ProjectRules struct {
	Frozen bool `json:"frozen,omitempty"`
}

// Project owns an ordered list of top-level constructs.
type Project struct {
	ID         string          `json:"id"`
	Version    int             `json:"version"`
	LastSaved  time.Time       `json:"lastSaved"`
	Metadata   ProjectMetadata `json:"metadata"`
	Components []string        `json:"components"`
	Rules      ProjectRules    `json:"rules"`
}

// NewProject constructs a project with a fresh id.
func NewProject(name string) Project {
	return Project{
		ID:         NewID(),
		Metadata:   ProjectMetadata{Name: name},
		Components: []string{},
	}
}

// Name returns the project name or a placeholder.
func (p Project) Name() string {
	if p.Metadata.Name == "" {
		return "Untitled Project"
	}
	return p.Metadata.Name
}

// Copy returns a deep copy sharing no slices with p.
func (p Project) Copy() Project {
	out := p
	if p.Components != nil {
		out.Components = make([]string, len(p.Components))
		copy(out.Components, p.Components)
	}
	return out
}

func (p Project) mutable() (Project, error) {
	if p.Rules.Frozen {
		return Project{}, fmt.Errorf("project %s: %w", p.ID, ErrFrozen)
	}
	return p.Copy(), nil
}

// SetName renames the project.
func (p Project) SetName(name string) (Project, error) {
	out, err := p.mutable()
	if err != nil {
		return Project{}, err
	}
	out.Metadata.Name = name
	return out, nil
}

// AddComponents prepends construct ids that are not already present.
func (p Project) AddComponents(ids ...string) (Project, error) {
	return p.AddComponentsAt(0, ids...)
}

// AddComponentsAt inserts construct ids at index, appending when index is out of range.
func (p Project) AddComponentsAt(index int, ids ...string) (Project, error) {
	out, err := p.mutable()
	if err != nil {
		return Project{}, err
	}
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if indexOf(out.Components, id) >= 0 || indexOf(fresh, id) >= 0 {
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return p, nil
	}
	if index < 0 || index > len(out.Components) {
		index = len(out.Components)
	}
	merged := make([]string, 0, len(out.Components)+len(fresh))
	merged = append(merged, out.Components[:index]...)
	merged = append(merged, fresh...)
	merged = append(merged, out.Components[index:]...)
	out.Components = merged
	return out, nil
}

// RemoveComponents drops construct ids.
func (p Project) RemoveComponents(ids ...string) (Project, error) {
	out, err := p.mutable()
	if err != nil {
		return Project{}, err
	}
	kept := make([]string, 0, len(out.Components))
	for _, id := range out.Components {
		if indexOf(ids, id) >= 0 {
			continue
		}
		kept = append(kept, id)
	}
	if len(kept) == len(p.Components) {
		return p, nil
	}
	out.Components = kept
	return out, nil
}

// MarkSaved records a successful save at a strictly newer version.
func (p Project) MarkSaved(version int, at time.Time) (Project, error) {
	if version <= p.Version {
		return Project{}, fmt.Errorf("project %s version %d <= %d: %w", p.ID, version, p.Version, ErrStaleVersion)
	}
	out := p.Copy()
	out.Version = version
	out.LastSaved = at
	return out, nil
}

// Equivalent compares two projects ignoring save bookkeeping (version, lastSaved).
func (p Project) Equivalent(other Project) bool {
	a, b := p.Copy(), other.Copy()
	a.Version, b.Version = 0, 0
	a.LastSaved, b.LastSaved = time.Time{}, time.Time{}
	if len(a.Components) == 0 && len(b.Components) == 0 {
		a.Components, b.Components = nil, nil
	}
	return reflect.DeepEqual(a, b)
}
