package core

import (
	"context"
	"fmt"

	"gencon/pkg/domain"
)

// DanglingReferenceRule warns about components, options and project
// constructs that point at blocks missing from the state.
func DanglingReferenceRule() domain.Rule {
	return danglingReferenceRule{}
}

type danglingReferenceRule struct{}

func (danglingReferenceRule) Name() string { return "dangling_reference" }

func (danglingReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, b := range changedBlocks(changes) {
		for _, cid := range b.Children() {
			if _, ok := view.FindBlock(cid); !ok {
				res.Violations = append(res.Violations, danglingViolation(domain.EntityBlock, b.ID, cid))
			}
		}
	}
	for _, p := range changedProjects(changes) {
		for _, cid := range p.Components {
			if _, ok := view.FindBlock(cid); !ok {
				res.Violations = append(res.Violations, danglingViolation(domain.EntityProject, p.ID, cid))
			}
		}
	}
	return res, nil
}

func danglingViolation(entity domain.EntityType, ownerID, missingID string) domain.Violation {
	return domain.Violation{
		Rule:     "dangling_reference",
		Severity: domain.SeverityWarn,
		Message:  fmt.Sprintf("%s %s references missing block %s", entity, ownerID, missingID),
		Entity:   entity,
		EntityID: ownerID,
	}
}
