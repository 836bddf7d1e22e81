package core

import (
	"context"
	"fmt"

	"gencon/pkg/domain"
)

// ProjectConsistencyRule blocks blocks reachable from a project that carry a
// different project id.
func ProjectConsistencyRule() domain.Rule {
	return projectConsistencyRule{}
}

type projectConsistencyRule struct{}

func (projectConsistencyRule) Name() string { return "project_consistency" }

func (projectConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := make(map[string]bool)
	for _, b := range changedBlocks(changes) {
		touched[b.ID] = true
	}
	for _, p := range changedProjects(changes) {
		touched[p.ID] = true
	}
	if len(touched) == 0 {
		return res, nil
	}

	for _, project := range view.ListProjects() {
		seen := make(map[string]bool)
		queue := append([]string(nil), project.Components...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if seen[id] {
				continue
			}
			seen[id] = true
			b, ok := view.FindBlock(id)
			if !ok {
				continue
			}
			queue = append(queue, b.Children()...)
			if b.ProjectID == project.ID || !(touched[project.ID] || touched[b.ID]) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_consistency",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("block %s in project %s has project id %q", b.ID, project.ID, b.ProjectID),
				Entity:   domain.EntityBlock,
				EntityID: b.ID,
			})
		}
	}
	return res, nil
}
