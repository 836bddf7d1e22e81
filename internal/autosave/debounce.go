package autosave

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DebounceOptions selects which edges of a burst invoke the function.
// MaxWait, when positive, bounds how long invocation may be deferred.
type DebounceOptions struct {
	Leading  bool
	Trailing bool
	MaxWait  time.Duration
}

// Debouncer delays calls to fn until wait has elapsed without another call.
// The most recent argument wins. fn never runs under the debouncer's lock.
type Debouncer[T any] struct {
	mu      sync.Mutex
	clock   clock.Clock
	fn      func(T)
	wait    time.Duration
	maxWait time.Duration
	opts    DebounceOptions

	arg        T
	hasArg     bool
	lastCall   time.Time
	called     bool
	lastInvoke time.Time
	timer      *clock.Timer
	gen        uint64
}

// NewDebouncer builds a debouncer. A MaxWait shorter than wait is raised to wait.
func NewDebouncer[T any](clk clock.Clock, wait time.Duration, opts DebounceOptions, fn func(T)) *Debouncer[T] {
	if clk == nil {
		clk = clock.New()
	}
	if opts.MaxWait > 0 && opts.MaxWait < wait {
		opts.MaxWait = wait
	}
	return &Debouncer[T]{clock: clk, fn: fn, wait: wait, maxWait: opts.MaxWait, opts: opts}
}

// NewThrottle invokes fn at most once per wait, on both edges of a burst.
func NewThrottle[T any](clk clock.Clock, wait time.Duration, fn func(T)) *Debouncer[T] {
	return NewDebouncer(clk, wait, DebounceOptions{Leading: true, Trailing: true, MaxWait: wait}, fn)
}

func (d *Debouncer[T]) maxing() bool { return d.maxWait > 0 }

// Call schedules fn with arg.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	now := d.clock.Now()
	invoking := d.shouldInvokeLocked(now)
	d.arg, d.hasArg = arg, true
	d.lastCall, d.called = now, true

	if invoking {
		if d.timer == nil {
			run := d.leadingEdgeLocked(now)
			d.mu.Unlock()
			run()
			return
		}
		if d.maxing() {
			d.startTimerLocked(d.wait)
			run := d.invokeLocked(now)
			d.mu.Unlock()
			run()
			return
		}
	}
	if d.timer == nil {
		d.startTimerLocked(d.wait)
	}
	d.mu.Unlock()
}

// Cancel drops any pending invocation.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	var zero T
	d.arg, d.hasArg = zero, false
	d.called = false
	d.lastCall, d.lastInvoke = time.Time{}, time.Time{}
}

// Flush runs a pending trailing invocation now.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.stopTimerLocked()
	run := d.trailingEdgeLocked(d.clock.Now())
	d.mu.Unlock()
	run()
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer[T]) shouldInvokeLocked(now time.Time) bool {
	if !d.called {
		return true
	}
	sinceCall := now.Sub(d.lastCall)
	sinceInvoke := now.Sub(d.lastInvoke)
	return sinceCall >= d.wait || sinceCall < 0 || (d.maxing() && sinceInvoke >= d.maxWait)
}

func (d *Debouncer[T]) remainingLocked(now time.Time) time.Duration {
	remaining := d.wait - now.Sub(d.lastCall)
	if d.maxing() {
		if m := d.maxWait - now.Sub(d.lastInvoke); m < remaining {
			remaining = m
		}
	}
	return remaining
}

func (d *Debouncer[T]) leadingEdgeLocked(now time.Time) func() {
	d.lastInvoke = now
	d.startTimerLocked(d.wait)
	if d.opts.Leading {
		return d.invokeLocked(now)
	}
	return func() {}
}

func (d *Debouncer[T]) trailingEdgeLocked(now time.Time) func() {
	d.timer = nil
	if d.opts.Trailing && d.hasArg {
		return d.invokeLocked(now)
	}
	var zero T
	d.arg, d.hasArg = zero, false
	return func() {}
}

func (d *Debouncer[T]) invokeLocked(now time.Time) func() {
	arg := d.arg
	var zero T
	d.arg, d.hasArg = zero, false
	d.lastInvoke = now
	return func() { d.fn(arg) }
}

func (d *Debouncer[T]) startTimerLocked(wait time.Duration) {
	d.stopTimerLocked()
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(wait, func() { d.expired(gen) })
}

func (d *Debouncer[T]) stopTimerLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) expired(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	now := d.clock.Now()
	if d.shouldInvokeLocked(now) {
		run := d.trailingEdgeLocked(now)
		d.mu.Unlock()
		run()
		return
	}
	d.startTimerLocked(d.remainingLocked(now))
	d.mu.Unlock()
}
