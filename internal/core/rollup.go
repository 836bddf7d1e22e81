package core

import (
	"gencon/pkg/domain"
)

// RollupFromState collects projectID and every block reachable from its
// constructs. A referenced block missing from the state is an error.
func RollupFromState(st State, projectID string) (domain.Rollup, error) {
	project, ok := st.Projects[projectID]
	if !ok {
		return domain.Rollup{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: projectID}
	}
	blocks := make(map[string]domain.Block)
	queue := append([]string(nil), project.Components...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := blocks[id]; seen {
			continue
		}
		b, ok := st.Blocks[id]
		if !ok {
			return domain.Rollup{}, domain.ErrNotFound{Entity: domain.EntityBlock, ID: id}
		}
		blocks[id] = b
		queue = append(queue, b.Children()...)
	}
	return domain.Rollup{Project: project, Blocks: blocks}, nil
}
