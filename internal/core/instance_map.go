package core

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"gencon/internal/redux"
	"gencon/pkg/domain"
)

// instanceMap remembers a digest of the last rollup saved or loaded per
// project. It only answers whether a rollup changed; nothing is restored
// from it.
type instanceMap struct {
	cache *lru.Cache[string, uint64]
}

func newInstanceMap(size int) (*instanceMap, error) {
	cache, err := lru.New[string, uint64](size)
	if err != nil {
		return nil, err
	}
	return &instanceMap{cache: cache}, nil
}

// rollupDigest ignores save bookkeeping on the project.
func rollupDigest(r domain.Rollup) uint64 {
	r.Project.Version = 0
	r.Project.LastSaved = time.Time{}
	return redux.DeepDigest(r)
}

// IsRollupNew reports whether r differs from the recorded rollup of its
// project. Projects never recorded, or evicted, are new.
func (m *instanceMap) IsRollupNew(r domain.Rollup) bool {
	digest, ok := m.cache.Get(r.Project.ID)
	return !ok || digest != rollupDigest(r)
}

// Record notes r as the last known saved rollup of its project.
func (m *instanceMap) Record(r domain.Rollup) {
	m.cache.Add(r.Project.ID, rollupDigest(r))
}
