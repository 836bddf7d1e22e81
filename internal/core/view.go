package core

import "gencon/pkg/domain"

// stateView exposes a state to rules read-only.
type stateView struct {
	state State
}

func newStateView(st State) stateView { return stateView{state: st} }

// ListBlocks returns every block ordered by id.
func (v stateView) ListBlocks() []domain.Block {
	out := make([]domain.Block, 0, len(v.state.Blocks))
	for _, id := range sortedKeys(v.state.Blocks) {
		out = append(out, v.state.Blocks[id].Copy())
	}
	return out
}

// ListProjects returns every project ordered by id.
func (v stateView) ListProjects() []domain.Project {
	out := make([]domain.Project, 0, len(v.state.Projects))
	for _, id := range sortedKeys(v.state.Projects) {
		out = append(out, v.state.Projects[id].Copy())
	}
	return out
}

func (v stateView) FindBlock(id string) (domain.Block, bool) {
	b, ok := v.state.Blocks[id]
	if !ok {
		return domain.Block{}, false
	}
	return b.Copy(), true
}

func (v stateView) FindProject(id string) (domain.Project, bool) {
	p, ok := v.state.Projects[id]
	if !ok {
		return domain.Project{}, false
	}
	return p.Copy(), true
}
