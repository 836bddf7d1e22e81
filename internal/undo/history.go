// Package undo keeps per-slice state histories coordinated by a Manager so
// one user gesture undoes atomically across every slice it touched.
package undo

// History is the past, present and future of one slice. Values are
// replaced, never mutated, by its methods.
type History[S any] struct {
	Past    []S
	Present S
	Future  []S
}

// NewHistory starts a history at present.
func NewHistory[S any](present S) History[S] {
	return History[S]{Present: present}
}

// Insert records next as a new undoable step.
func (h History[S]) Insert(next S) History[S] {
	past := make([]S, len(h.Past), len(h.Past)+1)
	copy(past, h.Past)
	return History[S]{Past: append(past, h.Present), Present: next}
}

// Patch replaces the present without recording a step. Redo is no longer
// meaningful afterwards so the future is dropped.
func (h History[S]) Patch(next S) History[S] {
	return History[S]{Past: h.Past, Present: next}
}

// Undo moves one step back. ok is false when there is no past.
func (h History[S]) Undo() (History[S], bool) {
	if len(h.Past) == 0 {
		return h, false
	}
	last := len(h.Past) - 1
	future := make([]S, 0, len(h.Future)+1)
	future = append(future, h.Present)
	future = append(future, h.Future...)
	return History[S]{Past: h.Past[:last:last], Present: h.Past[last], Future: future}, true
}

// Redo moves one step forward. ok is false when there is no future.
func (h History[S]) Redo() (History[S], bool) {
	if len(h.Future) == 0 {
		return h, false
	}
	past := make([]S, len(h.Past), len(h.Past)+1)
	copy(past, h.Past)
	return History[S]{Past: append(past, h.Present), Present: h.Future[0], Future: h.Future[1:]}, true
}

// Reset drops past and future, keeping present.
func (h History[S]) Reset(present S) History[S] {
	return History[S]{Present: present}
}

// ClearFuture drops the redo steps.
func (h History[S]) ClearFuture() History[S] {
	return History[S]{Past: h.Past, Present: h.Present}
}
