package redux

import (
	"fmt"
	"sync"
)

// MutationError reports that a state returned by a frozen reducer was
// modified in place before the next dispatch.
type MutationError struct {
	Expected uint64
	Actual   uint64
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("state mutated outside a reducer (digest %x, want %x)", e.Actual, e.Expected)
}

type freezeConfig struct {
	deep bool
}

// Frozen wraps a reducer and detects in-place mutation of the states it
// returned. Shallow mode covers the entries of top-level maps and slices;
// deep mode covers the whole value.
type Frozen[S any] struct {
	mu      sync.Mutex
	reducer Reducer[S]
	deep    bool
	last    S
	digest  uint64
	primed  bool
}

// FreezeOpt configures a Frozen reducer.
type FreezeOpt func(*freezeConfig)

// WithDeepFreeze checks the full state instead of one level.
func WithDeepFreeze() FreezeOpt {
	return func(c *freezeConfig) { c.deep = true }
}

// NewFrozen wraps reducer.
func NewFrozen[S any](reducer Reducer[S], opts ...FreezeOpt) *Frozen[S] {
	var cfg freezeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Frozen[S]{reducer: reducer, deep: cfg.deep}
}

// Freeze returns reducer wrapped by a Frozen. The returned reducer panics
// with *MutationError when it observes a mutated state.
func Freeze[S any](reducer Reducer[S], opts ...FreezeOpt) Reducer[S] {
	return NewFrozen(reducer, opts...).Reduce
}

// Reduce verifies the previously returned state, runs the reducer and
// records the new state.
func (f *Frozen[S]) Reduce(state S, action Action) S {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.verifyLocked(); err != nil {
		panic(err)
	}
	next := f.reducer(state, action)
	f.last = next
	f.digest = f.sum(next)
	f.primed = true
	return next
}

// Verify checks the last returned state without reducing.
func (f *Frozen[S]) Verify() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyLocked()
}

func (f *Frozen[S]) verifyLocked() error {
	if !f.primed {
		return nil
	}
	if got := f.sum(f.last); got != f.digest {
		return &MutationError{Expected: f.digest, Actual: got}
	}
	return nil
}

func (f *Frozen[S]) sum(v S) uint64 {
	if f.deep {
		return DeepDigest(v)
	}
	return ShallowDigest(v)
}
