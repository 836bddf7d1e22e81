package core

import (
	"context"
	"fmt"

	"gencon/pkg/domain"
)

// ListExclusivityRule blocks list blocks that also carry components.
func ListExclusivityRule() domain.Rule {
	return listExclusivityRule{}
}

type listExclusivityRule struct{}

func (listExclusivityRule) Name() string { return "list_exclusivity" }

func (listExclusivityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, b := range changedBlocks(changes) {
		if b.IsList() && len(b.Components) > 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "list_exclusivity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("list block %s has %d components", b.ID, len(b.Components)),
				Entity:   domain.EntityBlock,
				EntityID: b.ID,
			})
		}
	}
	return res, nil
}
