package core

import (
	"context"
	"fmt"

	"gencon/internal/redux"
	"gencon/pkg/domain"
)

// FrozenBlockRule blocks any change to a frozen block other than unfreezing it.
func FrozenBlockRule() domain.Rule {
	return frozenBlockRule{}
}

type frozenBlockRule struct{}

func (frozenBlockRule) Name() string { return "frozen_block" }

func (frozenBlockRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityBlock || change.Action != domain.ActionUpdate {
			continue
		}
		before, ok := change.Before.(domain.Block)
		if !ok || !before.IsFrozen() {
			continue
		}
		after, ok := change.After.(domain.Block)
		if !ok {
			continue
		}
		if redux.DeepDigest(after.SetFrozen(true)) == redux.DeepDigest(before) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "frozen_block",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("block %s is frozen", before.ID),
			Entity:   domain.EntityBlock,
			EntityID: before.ID,
		})
	}
	return res, nil
}
