package undo

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"gencon/internal/observability"
	"gencon/internal/redux"
)

// Status summarises the coordinated history.
type Status struct {
	Past          int
	Future        int
	InTransaction bool
	// Time is when the most recent step was recorded, zero without one.
	Time time.Time
}

type entry struct {
	keys   []string
	action string
	seq    uint64
	time   time.Time
}

func (e *entry) addKey(key string) {
	for _, k := range e.keys {
		if k == key {
			return
		}
	}
	e.keys = append(e.keys, key)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l observability.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock sets the clock stamping history entries.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// frame is the state a nested transaction opened with.
type frame struct {
	marks  map[string]any
	txKeys map[string]bool
}

// Manager coordinates the sections of every enhanced slice. Each entry in
// its past names the slices one step touched; undo and redo move all of them
// together. Transactions nest; only the outermost commit records a step.
// Aborting a nested transaction rolls back to where it opened and leaves the
// enclosing transaction open.
type Manager struct {
	mu       sync.Mutex
	sections map[string]section
	order    []string
	past     []*entry
	future   []*entry

	depth  int
	frames []frame
	txKeys map[string]bool
	txSeq  uint64

	lastControl uint64
	lastPurge   uint64

	clock  clock.Clock
	logger observability.Logger
}

// NewManager builds an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sections: make(map[string]section),
		clock:    clock.New(),
		logger:   observability.NoopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) register(key string, s section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sections[key]; ok {
		panic(fmt.Sprintf("undo: section %q registered twice", key))
	}
	m.sections[key] = s
	m.order = append(m.order, key)
	sort.Strings(m.order)
}

// Status reports history depth and transaction state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Past: len(m.past), Future: len(m.future), InTransaction: m.depth > 0}
	if n := len(m.past); n > 0 {
		st.Time = m.past[n-1].time
	}
	return st
}

// InTransaction reports whether a transaction is open.
func (m *Manager) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0
}

// control applies a control action once per dispatch, however many
// sections observe it.
func (m *Manager) control(a redux.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Seq != 0 && a.Seq == m.lastControl {
		return
	}
	m.lastControl = a.Seq
	switch a.Type {
	case ActionUndo:
		m.undoLocked()
	case ActionRedo:
		m.redoLocked()
	case ActionJump:
		n, _ := a.Payload.(int)
		for ; n < 0; n++ {
			if !m.undoLocked() {
				break
			}
		}
		for ; n > 0; n-- {
			if !m.redoLocked() {
				break
			}
		}
	case ActionTransact:
		m.transactLocked(a.Seq)
	case ActionCommit:
		m.commitLocked()
	case ActionAbort:
		m.abortLocked()
	case ActionPurge:
		m.purgeLocked()
	}
}

func (m *Manager) transactLocked(seq uint64) {
	m.depth++
	if m.depth > 1 {
		m.logger.Debug("nested transaction", "depth", m.depth)
		f := frame{marks: make(map[string]any, len(m.order)), txKeys: make(map[string]bool, len(m.txKeys))}
		for _, key := range m.order {
			f.marks[key] = m.sections[key].mark()
		}
		for key := range m.txKeys {
			f.txKeys[key] = true
		}
		m.frames = append(m.frames, f)
		return
	}
	m.frames = nil
	m.txKeys = make(map[string]bool)
	m.txSeq = seq
	for _, key := range m.order {
		m.sections[key].begin()
	}
}

func (m *Manager) commitLocked() {
	if m.depth == 0 {
		m.logger.Debug("commit outside transaction ignored")
		return
	}
	m.depth--
	if m.depth > 0 {
		m.frames = m.frames[:len(m.frames)-1]
		return
	}
	m.finishLocked(false)
}

func (m *Manager) abortLocked() {
	if m.depth == 0 {
		m.logger.Debug("abort outside transaction ignored")
		return
	}
	m.depth--
	if m.depth > 0 {
		f := m.frames[len(m.frames)-1]
		m.frames = m.frames[:len(m.frames)-1]
		for _, key := range m.order {
			m.sections[key].restore(f.marks[key])
		}
		m.txKeys = f.txKeys
		return
	}
	m.finishLocked(true)
}

// finishLocked closes the outermost transaction.
func (m *Manager) finishLocked(discard bool) {
	m.frames = nil
	if discard {
		for _, key := range m.order {
			m.sections[key].end(endDiscard)
		}
		m.txKeys = nil
		return
	}
	var keys []string
	for _, key := range m.order {
		if m.txKeys[key] {
			m.sections[key].end(endRecord)
			keys = append(keys, key)
		} else {
			m.sections[key].end(endPatch)
		}
	}
	m.txKeys = nil
	if len(keys) == 0 {
		return
	}
	m.pushLocked(&entry{keys: keys, action: ActionCommit, seq: m.txSeq, time: m.clock.Now()})
}

func (m *Manager) pushLocked(e *entry) {
	m.past = append(m.past, e)
	m.clearFutureLocked()
}

func (m *Manager) clearFutureLocked() {
	if len(m.future) == 0 {
		return
	}
	m.future = nil
	for _, key := range m.order {
		m.sections[key].clearFuture()
	}
}

// discardOpenLocked abandons an open transaction before history moves.
func (m *Manager) discardOpenLocked() {
	if m.depth == 0 {
		return
	}
	m.logger.Warn("history moved during transaction; discarding transaction", "depth", m.depth)
	m.depth = 0
	m.finishLocked(true)
}

func (m *Manager) undoLocked() bool {
	m.discardOpenLocked()
	n := len(m.past)
	if n == 0 {
		return false
	}
	e := m.past[n-1]
	m.past = m.past[:n-1]
	for _, key := range e.keys {
		m.sections[key].undo()
	}
	m.future = append([]*entry{e}, m.future...)
	return true
}

func (m *Manager) redoLocked() bool {
	m.discardOpenLocked()
	if len(m.future) == 0 {
		return false
	}
	e := m.future[0]
	m.future = m.future[1:]
	for _, key := range e.keys {
		m.sections[key].redo()
	}
	m.past = append(m.past, e)
	return true
}

func (m *Manager) purgeLocked() {
	m.past, m.future = nil, nil
	for _, key := range m.order {
		m.sections[key].purge()
	}
}

// purgeOnce clears history once per dispatch.
func (m *Manager) purgeOnce(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != 0 && seq == m.lastPurge {
		return
	}
	m.lastPurge = seq
	m.purgeLocked()
}

// recordLocked notes an undoable change of key by the action with seq.
func (m *Manager) recordLocked(key string, a redux.Action) {
	if m.depth > 0 {
		m.txKeys[key] = true
		return
	}
	if n := len(m.past); n > 0 && a.Seq != 0 && m.past[n-1].seq == a.Seq {
		m.past[n-1].addKey(key)
		return
	}
	m.pushLocked(&entry{keys: []string{key}, action: a.Type, seq: a.Seq, time: m.clock.Now()})
}
