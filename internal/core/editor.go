// Package core implements the design editor: a pausable, undoable store of
// blocks, projects and orders whose operations run as rule-checked
// transactions and whose projects are saved in the background.
package core

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"gencon/internal/autosave"
	"gencon/internal/observability"
	"gencon/internal/redux"
	"gencon/internal/undo"
	"gencon/pkg/domain"
)

const (
	sliceBlocks   = "blocks"
	sliceProjects = "projects"
	sliceOrders   = "orders"

	defaultInstanceCacheSize = 256
)

// ErrNoTransaction is returned when closing a transaction that is not open.
var ErrNoTransaction = errors.New("no transaction open")

// SequenceService stores raw sequence bytes outside the editor state.
type SequenceService interface {
	Put(ctx context.Context, seq string) (domain.SequenceRef, error)
	BlockSequence(ctx context.Context, b domain.Block) (string, error)
}

type editorConfig struct {
	rollups      domain.RollupStore
	sequences    SequenceService
	tracker      domain.SaveTracker
	engine       *domain.RulesEngine
	logger       observability.Logger
	metrics      observability.MetricsRecorder
	tracer       observability.Tracer
	clock        clock.Clock
	rng          *rand.Rand
	throttle     time.Duration
	debounce     time.Duration
	pauseTimeout time.Duration
	deepFreeze   bool
	cacheSize    int
}

// Option configures an Editor.
type Option func(*editorConfig)

// WithRollupStore sets where project rollups are saved and loaded.
func WithRollupStore(s domain.RollupStore) Option {
	return func(c *editorConfig) { c.rollups = s }
}

// WithSequenceService sets the store for block sequences.
func WithSequenceService(s SequenceService) Option {
	return func(c *editorConfig) { c.sequences = s }
}

// WithSaveTracker records save outcomes per project.
func WithSaveTracker(t domain.SaveTracker) Option {
	return func(c *editorConfig) { c.tracker = t }
}

// WithRulesEngine replaces the default rules.
func WithRulesEngine(e *domain.RulesEngine) Option {
	return func(c *editorConfig) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithLogger sets the logger shared by the editor, its history and autosave.
func WithLogger(l observability.Logger) Option {
	return func(c *editorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records the outcome and duration of every operation and save.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *editorConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracer opens a span around every operation.
func WithTracer(t observability.Tracer) Option {
	return func(c *editorConfig) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithClock drives the pause valve, the autosave timers and timestamps.
func WithClock(clk clock.Clock) Option {
	return func(c *editorConfig) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithRand seeds order sampling.
func WithRand(r *rand.Rand) Option {
	return func(c *editorConfig) { c.rng = r }
}

// WithAutosave sets the throttle and debounce windows.
func WithAutosave(throttle, debounce time.Duration) Option {
	return func(c *editorConfig) {
		c.throttle = throttle
		c.debounce = debounce
	}
}

// WithPauseTimeout sets the pause safety valve. Zero disables it.
func WithPauseTimeout(d time.Duration) Option {
	return func(c *editorConfig) { c.pauseTimeout = d }
}

// WithDeepFreeze checks whole states for outside mutation instead of one level.
func WithDeepFreeze() Option {
	return func(c *editorConfig) { c.deepFreeze = true }
}

// WithInstanceCacheSize bounds the number of projects whose last saved
// rollup is remembered.
func WithInstanceCacheSize(n int) Option {
	return func(c *editorConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// Editor owns the design state and every operation on it.
type Editor struct {
	cfg       editorConfig
	store     *redux.Store[State]
	history   *undo.Manager
	saver     *autosave.Coordinator[State]
	instances *instanceMap
	owners    ownerIndex

	opMu   sync.Mutex
	saveMu sync.Mutex

	mu       sync.Mutex
	versions map[string]int
}

// NewEditor builds an empty editor.
func NewEditor(opts ...Option) (*Editor, error) {
	cfg := editorConfig{
		engine:       NewDefaultRulesEngine(),
		logger:       observability.NoopLogger{},
		metrics:      observability.NoopMetrics{},
		tracer:       observability.NoopTracer{},
		clock:        clock.New(),
		throttle:     autosave.DefaultThrottle,
		debounce:     autosave.DefaultDebounce,
		pauseTimeout: redux.DefaultSafetyTimeout,
		cacheSize:    defaultInstanceCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewPCG(uint64(cfg.clock.Now().UnixNano()), rand.Uint64()))
	}
	instances, err := newInstanceMap(cfg.cacheSize)
	if err != nil {
		return nil, err
	}
	e := &Editor{cfg: cfg, instances: instances, versions: make(map[string]int)}

	e.history = undo.NewManager(undo.WithLogger(cfg.logger), undo.WithClock(cfg.clock))
	e.saver = autosave.New(e.persist, e.saveSnapshot,
		autosave.WithFilter(unsavedChange),
		autosave.WithPurgeOn(isProjectLoad),
		autosave.WithSimulateOn(isProjectLoad),
		autosave.WithThrottle(cfg.throttle),
		autosave.WithDebounce(cfg.debounce),
		autosave.WithClock(cfg.clock),
		autosave.WithLogger(cfg.logger),
		autosave.WithMetrics(cfg.metrics),
	)

	initial := emptyState()
	blocks := autosave.Enhance(e.saver, undo.Enhance(e.history, sliceBlocks, reduceBlocks, initial.Blocks))
	projects := autosave.Enhance(e.saver, undo.Enhance(e.history, sliceProjects, reduceProjects, initial.Projects))
	orders := undo.Enhance(e.history, sliceOrders, reduceOrders, initial.Orders)
	root := func(s State, a redux.Action) State {
		return State{
			Blocks:   blocks(s.Blocks, a),
			Projects: projects(s.Projects, a),
			Orders:   orders(s.Orders, a),
		}
	}
	var freezeOpts []redux.FreezeOpt
	if cfg.deepFreeze {
		freezeOpts = append(freezeOpts, redux.WithDeepFreeze())
	}
	e.store = redux.NewStore(redux.Freeze(root, freezeOpts...), initial,
		redux.WithClock(cfg.clock),
		redux.WithLogger(cfg.logger),
		redux.WithSafetyTimeout(cfg.pauseTimeout),
	)
	return e, nil
}

// unsavedChange counts undoable edits and history moves that changed a slice.
func unsavedChange(a redux.Action, _ bool, next, prev any) bool {
	if !redux.Changed(prev, next) {
		return false
	}
	switch a.Type {
	case undo.ActionUndo, undo.ActionRedo, undo.ActionJump:
		return true
	}
	return a.Undoable
}

func isProjectLoad(a redux.Action, _ bool, _, _ any) bool {
	return a.Type == ActionProjectLoad
}

// saveSnapshot is the autosave source. It waits for a running operation
// and refuses while a user transaction is open, so saves only see committed
// state.
func (e *Editor) saveSnapshot() (State, bool) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if e.history.InTransaction() {
		return State{}, false
	}
	return e.store.GetState(), true
}

// State returns the current state. Callers must not modify it.
func (e *Editor) State() State { return e.store.GetState() }

// Subscribe registers fn to run after every transition while not paused.
func (e *Editor) Subscribe(fn func()) func() { return e.store.Subscribe(fn) }

// Pause suppresses notifications until the matching Resume.
func (e *Editor) Pause() { e.store.Pause() }

// Resume undoes one Pause and reports whether the store is still paused.
func (e *Editor) Resume(preventNotify, forceReset bool) bool {
	return e.store.Resume(preventNotify, forceReset)
}

// IsPaused reports whether notifications are suppressed.
func (e *Editor) IsPaused() bool { return e.store.IsPaused() }

// Undo reverts the most recent history step.
func (e *Editor) Undo() { e.control(undo.Undo()) }

// Redo reapplies the most recently undone step.
func (e *Editor) Redo() { e.control(undo.Redo()) }

// Jump moves n steps through history, backwards when negative.
func (e *Editor) Jump(n int) { e.control(undo.Jump(n)) }

func (e *Editor) control(a redux.Action) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.store.Dispatch(a)
}

// BeginTransaction groups the following operations into one history step.
func (e *Editor) BeginTransaction() { e.control(undo.Transact()) }

// CommitTransaction closes a transaction opened by BeginTransaction. It
// returns ErrNoTransaction when none is open, for instance after an undo
// discarded it.
func (e *Editor) CommitTransaction() error { return e.closeTransaction(undo.Commit()) }

// AbortTransaction discards a transaction opened by BeginTransaction.
func (e *Editor) AbortTransaction() error { return e.closeTransaction(undo.Abort()) }

func (e *Editor) closeTransaction(a redux.Action) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	if !e.history.InTransaction() {
		return ErrNoTransaction
	}
	e.store.Dispatch(a)
	return nil
}

// UndoStatus reports history depth.
func (e *Editor) UndoStatus() undo.Status { return e.history.Status() }

// IsDirty reports whether there are unsaved changes.
func (e *Editor) IsDirty() bool { return e.saver.IsDirty() }

// TimeUnsaved is how long the oldest unsaved change has waited.
func (e *Editor) TimeUnsaved() time.Duration { return e.saver.TimeUnsaved() }

// Save persists every changed project now. Inside an open transaction it
// returns autosave.ErrDeferred and the save is retried later.
func (e *Editor) Save(ctx context.Context) error { return e.saver.Save(ctx) }

// Close cancels scheduled saves and waits for running ones.
func (e *Editor) Close() { e.saver.Stop() }

func (e *Editor) version(projectID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.versions[projectID]
}

func (e *Editor) setVersion(projectID string, v int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v > e.versions[projectID] {
		e.versions[projectID] = v
	}
}

// run executes fn as one transaction: the store is paused so subscribers
// see a single notification, the diff is checked by the rules engine, and
// any error or blocking result aborts every change fn made.
func (e *Editor) run(ctx context.Context, op string, fn func(tx *txn) error) (domain.Result, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	ctx, span := e.cfg.tracer.Start(ctx, op)
	start := e.cfg.clock.Now()
	res, err := e.transact(ctx, fn)
	e.cfg.metrics.Observe(ctx, op, err == nil, e.cfg.clock.Now().Sub(start))
	span.End(err)
	if err != nil {
		e.cfg.logger.Debug("editor operation aborted", "operation", op, "error", err)
	}
	return res, err
}

func (e *Editor) transact(ctx context.Context, fn func(tx *txn) error) (res domain.Result, err error) {
	e.store.Pause()
	e.store.Dispatch(undo.Transact())
	before := e.store.GetState()
	defer func() {
		if err != nil {
			e.store.Dispatch(undo.Abort())
		} else {
			e.store.Dispatch(undo.Commit())
		}
		e.store.Resume(false, false)
	}()

	if err = fn(&txn{e: e, ctx: ctx}); err != nil {
		return domain.Result{}, err
	}
	res, err = e.evaluate(ctx, before, e.store.GetState())
	return res, err
}

func (e *Editor) evaluate(ctx context.Context, before, after State) (domain.Result, error) {
	changes := diff(before, after)
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	res, err := e.cfg.engine.Evaluate(ctx, newStateView(after), changes)
	if err != nil {
		return domain.Result{}, err
	}
	for _, v := range res.Violations {
		switch v.Severity {
		case domain.SeverityWarn:
			e.cfg.logger.Warn("rule violation", "rule", v.Rule, "entity", v.EntityID, "message", v.Message)
		case domain.SeverityLog:
			e.cfg.logger.Debug("rule violation", "rule", v.Rule, "entity", v.EntityID, "message", v.Message)
		}
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}
	return res, nil
}
