package autosave

import "gencon/internal/redux"

// Enhance wraps a slice reducer so its transitions feed c. Every slice of
// the store observed by c is wrapped with the same coordinator.
func Enhance[S, T any](c *Coordinator[S], reducer redux.Reducer[T]) redux.Reducer[T] {
	initialized := false
	return func(state T, a redux.Action) T {
		if c.shouldForce(a) {
			c.force(a.Seq)
			return state
		}
		next := reducer(state, a)
		c.Observe(a, next, state, initialized)
		initialized = true
		return next
	}
}
