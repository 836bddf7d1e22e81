// Package redux provides the serializable state container used by the
// editor: actions, reducers, a pausable store and the freeze enhancer.
package redux

// Action types owned by this package.
const (
	ActionInit    = "@@redux/INIT"
	ActionPause   = "@@pausable/PAUSE"
	ActionResume  = "@@pausable/RESUME"
	ActionResumed = "@@pausable/RESUMED"
)

// Action is a transition request. Enhancers interpret only Type, Undoable and
// Purge; Payload belongs to the slice reducers.
type Action struct {
	Type     string
	Undoable bool
	// Purge asks history-keeping enhancers to drop their history.
	Purge    bool
	Payload  any
	// Seq is stamped by Store.Dispatch and is unique per dispatch.
	Seq      uint64
}

// ResumeOptions is the payload of an ActionResume request.
type ResumeOptions struct {
	PreventNotify bool
	ForceReset    bool
}

// Reducer computes the next state. Reducers must be synchronous and must not
// dispatch.
type Reducer[S any] func(state S, action Action) S

// Listener is notified after a dispatch while the store is not paused.
type Listener func()
