package undo

import "gencon/internal/redux"

// EnhanceOption configures Enhance.
type EnhanceOption func(*enhanceConfig)

type enhanceConfig struct {
	purgeOn func(a redux.Action) bool
	filter  func(a redux.Action, next, prev any) bool
	changed func(prev, next any) bool
}

// WithPurgeOn clears history after any action matching fn is reduced.
func WithPurgeOn(fn func(a redux.Action) bool) EnhanceOption {
	return func(c *enhanceConfig) { c.purgeOn = fn }
}

// WithFilter records a step for changes caused by actions matching fn even
// when they are not marked undoable.
func WithFilter(fn func(a redux.Action, next, prev any) bool) EnhanceOption {
	return func(c *enhanceConfig) { c.filter = fn }
}

// WithChangeTest replaces reference identity as the test for whether the
// slice changed.
func WithChangeTest(fn func(prev, next any) bool) EnhanceOption {
	return func(c *enhanceConfig) { c.changed = fn }
}

// Enhance wraps reducer so that its slice, registered under key, keeps a
// history in m. Control actions return the section's current state without
// running reducer.
func Enhance[S any](m *Manager, key string, reducer redux.Reducer[S], initial S, opts ...EnhanceOption) redux.Reducer[S] {
	cfg := enhanceConfig{
		purgeOn: func(redux.Action) bool { return false },
		filter:  func(redux.Action, any, any) bool { return false },
		changed: redux.Changed,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	sec := newSection(initial)
	m.register(key, sec)

	return func(state S, a redux.Action) S {
		if IsControl(a.Type) {
			m.control(a)
			m.mu.Lock()
			defer m.mu.Unlock()
			return sec.current()
		}

		next := reducer(state, a)

		if a.Type == redux.ActionInit {
			m.purgeOnce(a.Seq)
			m.mu.Lock()
			defer m.mu.Unlock()
			sec.reset(next)
			return sec.current()
		}

		if a.Purge || cfg.purgeOn(a) {
			m.purgeOnce(a.Seq)
		}

		if !cfg.changed(state, next) {
			return state
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if a.Undoable || cfg.filter(a, next, state) {
			m.recordLocked(key, a)
			sec.insert(next)
		} else {
			if m.depth == 0 {
				m.clearFutureLocked()
			}
			sec.patch(next)
		}
		return sec.current()
	}
}
