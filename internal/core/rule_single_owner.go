package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gencon/pkg/domain"
)

// SingleOwnerRule blocks a block being listed by two owners, or by an owner
// and a project, when the change touches the block or one of its owners.
func SingleOwnerRule() domain.Rule {
	return singleOwnerRule{}
}

type singleOwnerRule struct{}

func (singleOwnerRule) Name() string { return "single_owner" }

func (singleOwnerRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
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

	owners := make(map[string][]string)
	for _, b := range view.ListBlocks() {
		for _, child := range b.Children() {
			owners[child] = append(owners[child], b.ID)
		}
	}
	for _, p := range view.ListProjects() {
		for _, cid := range p.Components {
			owners[cid] = append(owners[cid], "project "+p.ID)
		}
	}

	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		list := owners[id]
		if len(list) < 2 {
			continue
		}
		relevant := touched[id]
		for _, owner := range list {
			if touched[strings.TrimPrefix(owner, "project ")] {
				relevant = true
			}
		}
		if !relevant {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "single_owner",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("block %s is owned by %s", id, strings.Join(list, ", ")),
			Entity:   domain.EntityBlock,
			EntityID: id,
		})
	}
	return res, nil
}
