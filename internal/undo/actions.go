package undo

import "gencon/internal/redux"

// Control action types interpreted by the Manager.
const (
	ActionUndo     = "@@undo/UNDO"
	ActionRedo     = "@@undo/REDO"
	ActionJump     = "@@undo/JUMP"
	ActionTransact = "@@undo/TRANSACT"
	ActionCommit   = "@@undo/COMMIT"
	ActionAbort    = "@@undo/ABORT"
	ActionPurge    = "@@undo/PURGE"
)

// IsControl reports whether t is one of the undo control action types.
func IsControl(t string) bool {
	switch t {
	case ActionUndo, ActionRedo, ActionJump, ActionTransact, ActionCommit, ActionAbort, ActionPurge:
		return true
	}
	return false
}

func Undo() redux.Action     { return redux.Action{Type: ActionUndo} }
func Redo() redux.Action     { return redux.Action{Type: ActionRedo} }
func Transact() redux.Action { return redux.Action{Type: ActionTransact} }
func Commit() redux.Action   { return redux.Action{Type: ActionCommit} }
func Abort() redux.Action    { return redux.Action{Type: ActionAbort} }
func Purge() redux.Action    { return redux.Action{Type: ActionPurge} }

// Jump moves n steps, backwards when negative.
func Jump(n int) redux.Action { return redux.Action{Type: ActionJump, Payload: n} }

// MakeUndoable marks a as recording a history step.
func MakeUndoable(a redux.Action) redux.Action {
	a.Undoable = true
	return a
}

// MakePurging marks a as clearing history once reduced.
func MakePurging(a redux.Action) redux.Action {
	a.Purge = true
	return a
}
