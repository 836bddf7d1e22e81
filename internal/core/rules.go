package core

import "gencon/pkg/domain"

// NewRulesEngine constructs an engine with no rules.
func NewRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := NewRulesEngine()
	engine.Register(FrozenBlockRule())
	engine.Register(ListExclusivityRule())
	engine.Register(SingleOwnerRule())
	engine.Register(ProjectConsistencyRule())
	engine.Register(DanglingReferenceRule())
	return engine
}

// changedBlocks returns the post-change blocks of create and update changes.
func changedBlocks(changes []domain.Change) []domain.Block {
	var out []domain.Block
	for _, c := range changes {
		if c.Entity != domain.EntityBlock || c.After == nil {
			continue
		}
		if b, ok := c.After.(domain.Block); ok {
			out = append(out, b)
		}
	}
	return out
}

func changedProjects(changes []domain.Change) []domain.Project {
	var out []domain.Project
	for _, c := range changes {
		if c.Entity != domain.EntityProject || c.After == nil {
			continue
		}
		if p, ok := c.After.(domain.Project); ok {
			out = append(out, p)
		}
	}
	return out
}
