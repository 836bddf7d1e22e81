package redux

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"gencon/internal/observability"
)

// DefaultSafetyTimeout bounds how long a store stays paused before it is
// force-resumed.
const DefaultSafetyTimeout = time.Second

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	clock   clock.Clock
	logger  observability.Logger
	timeout time.Duration
}

// WithClock sets the clock driving the pause safety timer.
func WithClock(c clock.Clock) StoreOption {
	return func(cfg *storeConfig) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithLogger sets the logger used for pause warnings.
func WithLogger(l observability.Logger) StoreOption {
	return func(cfg *storeConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSafetyTimeout overrides DefaultSafetyTimeout. Zero disables the timer.
func WithSafetyTimeout(d time.Duration) StoreOption {
	return func(cfg *storeConfig) {
		if d >= 0 {
			cfg.timeout = d
		}
	}
}

type subscription struct {
	id uint64
	fn Listener
}

// Store holds the root state. While paused, dispatches still reduce but
// listeners are not notified; leaving the last pause emits ActionResumed so
// listeners observe the net change once.
type Store[S any] struct {
	mu        sync.Mutex
	reducer   Reducer[S]
	state     S
	seq       uint64
	listeners []subscription
	nextSubID uint64

	paused    int
	safety    *clock.Timer
	safetyGen uint64

	cfg storeConfig
}

// NewStore builds a store and dispatches ActionInit through reducer.
func NewStore[S any](reducer Reducer[S], initial S, opts ...StoreOption) *Store[S] {
	cfg := storeConfig{
		clock:   clock.New(),
		logger:  observability.NoopLogger{},
		timeout: DefaultSafetyTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Store[S]{reducer: reducer, state: initial, cfg: cfg}
	s.Dispatch(Action{Type: ActionInit})
	return s
}

// GetState returns the current root state.
func (s *Store[S]) GetState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn and returns a function removing it.
func (s *Store[S]) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Dispatch reduces action into the state and notifies listeners unless paused.
// ActionPause and ActionResume are handled as Pause and Resume requests.
func (s *Store[S]) Dispatch(action Action) Action {
	switch action.Type {
	case ActionPause:
		s.Pause()
		return action
	case ActionResume:
		opts, _ := action.Payload.(ResumeOptions)
		s.Resume(opts.PreventNotify, opts.ForceReset)
		return action
	}
	action, listeners := s.reduce(action)
	for _, fn := range listeners {
		fn()
	}
	return action
}

func (s *Store[S]) reduce(action Action) (Action, []Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	action.Seq = s.seq
	s.state = s.reducer(s.state, action)
	if s.paused > 0 {
		return action, nil
	}
	out := make([]Listener, 0, len(s.listeners))
	for _, sub := range s.listeners {
		out = append(out, sub.fn)
	}
	return action, out
}

// IsPaused reports whether notifications are suppressed.
func (s *Store[S]) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused > 0
}

// Pause suppresses notifications until a matching Resume. The first pause
// arms the safety timer. It returns true.
func (s *Store[S]) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused++
	if s.paused == 1 && s.cfg.timeout > 0 {
		s.safetyGen++
		gen := s.safetyGen
		s.safety = s.cfg.clock.AfterFunc(s.cfg.timeout, func() { s.expire(gen) })
	}
	return true
}

// Resume balances one Pause, or every outstanding pause when forceReset is
// set. Leaving the paused state notifies listeners through ActionResumed
// unless preventNotify. It returns whether the store is still paused; a
// resume on an unpaused store is a no-op returning false.
func (s *Store[S]) Resume(preventNotify, forceReset bool) bool {
	s.mu.Lock()
	if s.paused == 0 {
		s.mu.Unlock()
		return false
	}
	if forceReset {
		s.paused = 0
	} else {
		s.paused--
	}
	if s.paused > 0 {
		s.mu.Unlock()
		return true
	}
	s.disarm()
	s.mu.Unlock()
	if !preventNotify {
		s.Dispatch(Action{Type: ActionResumed})
	}
	return false
}

// disarm stops the safety timer. Callers hold mu.
func (s *Store[S]) disarm() {
	s.safetyGen++
	if s.safety != nil {
		s.safety.Stop()
		s.safety = nil
	}
}

func (s *Store[S]) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.safetyGen || s.paused == 0 {
		s.mu.Unlock()
		return
	}
	depth := s.paused
	s.paused = 0
	s.disarm()
	s.mu.Unlock()
	s.cfg.logger.Warn("store paused past safety timeout; forcing resume",
		"depth", depth, "timeout", s.cfg.timeout)
	s.Dispatch(Action{Type: ActionResumed})
}
