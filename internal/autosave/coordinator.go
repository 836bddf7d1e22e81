// Package autosave schedules persistence of the editor state. One
// Coordinator is shared by every slice it observes so edits to several
// slices inside one window produce a single save.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"gencon/internal/observability"
	"gencon/internal/redux"
)

// Defaults for the save windows.
const (
	DefaultThrottle     = 20 * time.Second
	DefaultDebounce     = 3 * time.Second
	ActionForceSave     = "@@autosave/FORCE_SAVE"
	metricSaveOperation = "autosave.save"
)

// Predicate decides how an observed transition affects the coordinator.
// alreadyDirty is the dirty flag before the transition.
type Predicate func(a redux.Action, alreadyDirty bool, next, prev any) bool

// SaveFunc persists a snapshot. A non-nil error keeps the state dirty.
type SaveFunc[S any] func(ctx context.Context, state S) error

// Source returns the state to persist. ok is false while the state must not
// be saved, such as inside an open transaction; the save is then retried
// after the next debounce window.
type Source[S any] func() (state S, ok bool)

// ErrDeferred is returned by Save when the source refused a snapshot.
var ErrDeferred = errors.New("autosave: save deferred until the open transaction closes")

// Option configures a Coordinator.
type Option func(*config)

type config struct {
	filter    Predicate
	purgeOn   Predicate
	simulate  Predicate
	forceOn   func(a redux.Action, alreadyDirty bool) bool
	forceType string
	throttle  time.Duration
	debounce  time.Duration
	clock     clock.Clock
	logger    observability.Logger
	metrics   observability.MetricsRecorder
	hooks     []func(error)
}

// WithFilter decides which transitions count as unsaved changes. The default
// counts any change of slice identity.
func WithFilter(p Predicate) Option { return func(c *config) { c.filter = p } }

// WithPurgeOn abandons pending saves and marks clean on matching transitions.
func WithPurgeOn(p Predicate) Option { return func(c *config) { c.purgeOn = p } }

// WithSimulateOn marks clean on matching transitions, for saves that already
// happened through another path.
func WithSimulateOn(p Predicate) Option { return func(c *config) { c.simulate = p } }

// WithForceOn saves immediately on matching actions.
func WithForceOn(fn func(a redux.Action, alreadyDirty bool) bool) Option {
	return func(c *config) { c.forceOn = fn }
}

// WithForceSaveType overrides ActionForceSave.
func WithForceSaveType(t string) Option { return func(c *config) { c.forceType = t } }

// WithThrottle sets the minimum spacing of saves.
func WithThrottle(d time.Duration) Option { return func(c *config) { c.throttle = d } }

// WithDebounce sets the quiet period before the first save of a burst.
func WithDebounce(d time.Duration) Option { return func(c *config) { c.debounce = d } }

// WithClock sets the clock driving the timers and TimeUnsaved.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l observability.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records each save outcome.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSaveHook runs fn after every save attempt with its error.
func WithSaveHook(fn func(error)) Option {
	return func(c *config) { c.hooks = append(c.hooks, fn) }
}

// Coordinator tracks unsaved changes across slices and calls the save
// function through a debounce feeding a leading and trailing throttle.
type Coordinator[S any] struct {
	cfg    config
	onSave SaveFunc[S]
	source Source[S]

	mu        sync.Mutex
	dirty     bool
	startedAt time.Time
	changeGen uint64
	forceSeq  uint64

	debounce *Debouncer[struct{}]
	throttle *Debouncer[struct{}]

	saveMu   sync.Mutex
	inflight sync.WaitGroup
}

// New builds a coordinator. source is read when a save starts, outside any
// reducer.
func New[S any](onSave SaveFunc[S], source Source[S], opts ...Option) *Coordinator[S] {
	cfg := config{
		filter: func(_ redux.Action, _ bool, next, prev any) bool {
			return redux.Changed(prev, next)
		},
		purgeOn:   func(redux.Action, bool, any, any) bool { return false },
		simulate:  func(redux.Action, bool, any, any) bool { return false },
		forceOn:   func(redux.Action, bool) bool { return false },
		forceType: ActionForceSave,
		throttle:  DefaultThrottle,
		debounce:  DefaultDebounce,
		clock:     clock.New(),
		logger:    observability.NoopLogger{},
		metrics:   observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Coordinator[S]{cfg: cfg, onSave: onSave, source: source}
	c.throttle = NewThrottle(cfg.clock, cfg.throttle, func(struct{}) { c.trigger() })
	c.debounce = NewDebouncer(cfg.clock, cfg.debounce,
		DebounceOptions{Trailing: true, MaxWait: cfg.throttle},
		func(v struct{}) { c.throttle.Call(v) })
	return c
}

// IsDirty reports whether changes arrived since the last successful save.
func (c *Coordinator[S]) IsDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// TimeUnsaved is how long the oldest unsaved change has waited, zero when clean.
func (c *Coordinator[S]) TimeUnsaved() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return 0
	}
	d := c.cfg.clock.Now().Sub(c.startedAt)
	if d <= 0 {
		// dirty must read as non-zero
		return time.Nanosecond
	}
	return d
}

// Pending reports whether a scheduled save has not started yet.
func (c *Coordinator[S]) Pending() bool {
	return c.debounce.Pending() || c.throttle.Pending()
}

// Save cancels scheduled work and persists synchronously. It must not be
// called from inside a reducer.
func (c *Coordinator[S]) Save(ctx context.Context) error {
	c.cancelTimers()
	return c.runSave(ctx)
}

// Wait blocks until saves started in the background have finished.
func (c *Coordinator[S]) Wait() {
	c.inflight.Wait()
}

// Stop cancels scheduled saves and waits for running ones.
func (c *Coordinator[S]) Stop() {
	c.cancelTimers()
	c.Wait()
}

// Observe applies one slice transition. initialized is false for the first
// transition a slice sees, which never schedules a save.
func (c *Coordinator[S]) Observe(a redux.Action, next, prev any, initialized bool) {
	c.mu.Lock()
	if c.cfg.purgeOn(a, c.dirty, next, prev) {
		c.cancelTimers()
		c.markCleanLocked()
		c.cfg.logger.Debug("autosave purged", "action", a.Type)
	}
	if c.cfg.simulate(a, c.dirty, next, prev) {
		c.markCleanLocked()
	}
	if c.cfg.filter(a, c.dirty, next, prev) {
		if !c.dirty {
			c.startedAt = c.cfg.clock.Now()
		}
		c.dirty = true
		c.changeGen++
	}
	schedule := c.dirty && initialized
	c.mu.Unlock()
	if schedule {
		c.debounce.Call(struct{}{})
	}
}

// shouldForce reports whether a is handled as an immediate save.
func (c *Coordinator[S]) shouldForce(a redux.Action) bool {
	if a.Type == c.cfg.forceType {
		return true
	}
	c.mu.Lock()
	dirty := c.dirty
	c.mu.Unlock()
	return c.cfg.forceOn(a, dirty)
}

// force cancels scheduled work and saves in the background, once per
// dispatch. Reducers call it with the store locked, so the save cannot run
// inline.
func (c *Coordinator[S]) force(seq uint64) {
	c.mu.Lock()
	dup := seq != 0 && seq == c.forceSeq
	c.forceSeq = seq
	c.mu.Unlock()
	if dup {
		return
	}
	c.cancelTimers()
	c.trigger()
}

func (c *Coordinator[S]) trigger() {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		_ = c.runSave(context.Background())
	}()
}

func (c *Coordinator[S]) cancelTimers() {
	c.debounce.Cancel()
	c.throttle.Cancel()
}

func (c *Coordinator[S]) markCleanLocked() {
	c.dirty = false
	c.startedAt = time.Time{}
	c.changeGen++
}

func (c *Coordinator[S]) runSave(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	gen := c.changeGen
	c.mu.Unlock()

	state, ok := c.source()
	if !ok {
		c.cfg.logger.Debug("autosave deferred; transaction open")
		c.debounce.Call(struct{}{})
		return ErrDeferred
	}

	start := c.cfg.clock.Now()
	err := c.onSave(ctx, state)
	c.cfg.metrics.Observe(ctx, metricSaveOperation, err == nil, c.cfg.clock.Now().Sub(start))

	c.mu.Lock()
	if err == nil && gen == c.changeGen {
		c.dirty = false
		c.startedAt = time.Time{}
	}
	c.mu.Unlock()

	if err != nil {
		c.cfg.logger.Warn("autosave failed; changes remain unsaved", "error", err)
	} else {
		c.cfg.logger.Debug("autosave complete")
	}
	for _, hook := range c.cfg.hooks {
		hook(err)
	}
	return err
}
