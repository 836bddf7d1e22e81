package undo

type endMode int

const (
	endRecord endMode = iota
	endPatch
	endDiscard
)

// section is the type-erased view of a Section used by the Manager.
type section interface {
	begin()
	end(mode endMode)
	undo() bool
	redo() bool
	purge()
	clearFuture()
	mark() any
	restore(m any)
}

// txMark is the working state of a Section when a nested transaction opened.
type txMark[S any] struct {
	tx    S
	dirty bool
}

// Section is the history of one keyed slice plus the working state of an
// open transaction. The owning Manager serialises access.
type Section[S any] struct {
	hist    History[S]
	inTx    bool
	tx      S
	txDirty bool
}

func newSection[S any](initial S) *Section[S] {
	return &Section[S]{hist: NewHistory(initial)}
}

// current is the transaction state when one is open, otherwise the present.
func (s *Section[S]) current() S {
	if s.inTx {
		return s.tx
	}
	return s.hist.Present
}

func (s *Section[S]) begin() {
	if s.inTx {
		return
	}
	s.inTx = true
	s.tx = s.hist.Present
	s.txDirty = false
}

func (s *Section[S]) end(mode endMode) {
	if !s.inTx {
		return
	}
	tx, dirty := s.tx, s.txDirty
	var zero S
	s.inTx, s.tx, s.txDirty = false, zero, false
	if !dirty {
		return
	}
	switch mode {
	case endRecord:
		s.hist = s.hist.Insert(tx)
	case endPatch:
		s.hist = s.hist.Patch(tx)
	}
}

func (s *Section[S]) mark() any {
	return txMark[S]{tx: s.tx, dirty: s.txDirty}
}

// restore returns the open transaction to a mark taken by mark.
func (s *Section[S]) restore(m any) {
	tm, ok := m.(txMark[S])
	if !ok || !s.inTx {
		return
	}
	s.tx, s.txDirty = tm.tx, tm.dirty
}

func (s *Section[S]) insert(next S) {
	if s.inTx {
		s.tx, s.txDirty = next, true
		return
	}
	s.hist = s.hist.Insert(next)
}

func (s *Section[S]) patch(next S) {
	if s.inTx {
		s.tx, s.txDirty = next, true
		return
	}
	s.hist = s.hist.Patch(next)
}

func (s *Section[S]) undo() bool {
	h, ok := s.hist.Undo()
	s.hist = h
	return ok
}

func (s *Section[S]) redo() bool {
	h, ok := s.hist.Redo()
	s.hist = h
	return ok
}

func (s *Section[S]) purge() {
	s.hist = s.hist.Reset(s.hist.Present)
}

func (s *Section[S]) reset(present S) {
	s.hist = s.hist.Reset(present)
	if s.inTx {
		s.tx, s.txDirty = present, false
	}
}

func (s *Section[S]) clearFuture() {
	s.hist = s.hist.ClearFuture()
}
