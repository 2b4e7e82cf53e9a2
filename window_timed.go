package flowz

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var errNonPositiveDuration = errors.New("flowz: window span and shift must be positive")

// WindowTimed splits a stream into windows by time. A window opens every
// shift and each window closes span after it opened, regardless of how many
// items it received.
//
// With shift == span (the default) windows are contiguous: closing one and
// opening the next happen in the same timer tick. With shift < span windows
// overlap and items are broadcast to every open window. With shift > span
// there are gaps whose items belong to no window and are dropped.
//
// The source is requested without bound. Windows open on timer ticks
// whether or not the downstream is ready, so opening a window the downstream
// has not requested fails the sequence with ErrMissingBackpressure.
type WindowTimed[T any] struct {
	name      string
	source    Publisher[T]
	span      time.Duration
	shift     time.Duration
	scheduler Scheduler
	clock     Clock
	capacity  int
}

// NewWindowTimed creates an operator emitting windows lasting span, driven
// by scheduler. A nil scheduler selects DefaultScheduler.
//
// When to use:
//   - Per-interval aggregation consumed as streams
//   - Rolling time windows (with WithShift)
//
// Example:
//
//	// 5-minute windows every minute (4 minute overlap)
//	windows := flowz.NewWindowTimed(metrics, 5*time.Minute, flowz.DefaultScheduler).
//		WithShift(time.Minute)
//
// Parameters:
//   - span: Duration of each window (must be > 0)
func NewWindowTimed[T any](source Publisher[T], span time.Duration, scheduler Scheduler) *WindowTimed[T] {
	if scheduler == nil {
		scheduler = DefaultScheduler
	}
	return &WindowTimed[T]{
		name:      "window-timed",
		source:    source,
		span:      span,
		shift:     span,
		scheduler: scheduler,
		clock:     RealClock,
		capacity:  DefaultWindowCapacity,
	}
}

// WithShift sets the interval between window openings.
func (wt *WindowTimed[T]) WithShift(shift time.Duration) *WindowTimed[T] {
	wt.shift = shift
	return wt
}

// WithCapacity sets how many items each window buffers for its subscriber.
func (wt *WindowTimed[T]) WithCapacity(capacity int) *WindowTimed[T] {
	wt.capacity = capacity
	return wt
}

// WithClock sets the clock used for window timestamps.
func (wt *WindowTimed[T]) WithClock(clock Clock) *WindowTimed[T] {
	wt.clock = clock
	return wt
}

// WithName sets a custom name for this operator.
func (wt *WindowTimed[T]) WithName(name string) *WindowTimed[T] {
	wt.name = name
	return wt
}

// Subscribe implements Publisher.
func (wt *WindowTimed[T]) Subscribe(s Subscriber[*Window[T]]) {
	if wt.span <= 0 || wt.shift <= 0 {
		subscribeError(s, errNonPositiveDuration)
		return
	}
	wt.source.Subscribe(&timedWindowSubscriber[T]{
		op:      wt,
		emitter: newWindowEmitter(s, wt.name, TimeWindow, true),
		closers: make(map[*Window[T]]Cancellable),
	})
}

func (wt *WindowTimed[T]) Name() string {
	return wt.name
}

type timedWindowSubscriber[T any] struct {
	op       *WindowTimed[T]
	emitter  *windowEmitter[T]
	upstream Subscription

	cancelled atomic.Bool

	mu      sync.Mutex
	open    []*Window[T]
	closers map[*Window[T]]Cancellable
	opener  Cancellable
	done    bool
}

func (t *timedWindowSubscriber[T]) OnSubscribe(s Subscription) {
	if !validateSubscription(t.upstream, s) {
		return
	}
	t.upstream = s
	t.emitter.actual.OnSubscribe(t)
	if t.cancelled.Load() {
		return
	}

	if t.op.shift == t.op.span {
		t.mu.Lock()
		err := t.openLocked()
		t.mu.Unlock()
		if err != nil {
			t.fail(err)
			return
		}
		t.emitter.drain()
		t.setOpener(t.op.scheduler.Schedule(t.rollover, t.op.span))
	} else {
		t.openWindow()
		t.setOpener(t.op.scheduler.Schedule(t.openWindow, t.op.shift))
	}
	s.Request(Unbounded)
}

func (t *timedWindowSubscriber[T]) setOpener(c Cancellable) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		c.Cancel()
		return
	}
	t.opener = c
	t.mu.Unlock()
}

// rollover closes the current window and opens the next one under a
// single lock, so contiguous windows neither overlap nor leave a gap.
func (t *timedWindowSubscriber[T]) rollover() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	closing := t.open
	for _, w := range closing {
		w.terminate(nil)
	}
	t.open = nil
	err := t.openLocked()
	t.mu.Unlock()

	for _, w := range closing {
		w.drain()
	}
	if err != nil {
		t.fail(err)
		return
	}
	t.emitter.drain()
}

// openLocked opens a window and queues it for emission. It must be called
// with mu held.
func (t *timedWindowSubscriber[T]) openLocked() error {
	w := newWindow[T](TimeWindow, t.op.capacity, t.op.clock)
	if err := t.emitter.offer(w); err != nil {
		return err
	}
	t.open = append(t.open, w)
	return nil
}

// openWindow opens a window on its own schedule and arms its close before
// the window is emitted.
func (t *timedWindowSubscriber[T]) openWindow() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	if err := t.openLocked(); err != nil {
		t.mu.Unlock()
		t.fail(err)
		return
	}
	w := t.open[len(t.open)-1]
	t.closers[w] = t.op.scheduler.Submit(func() { t.closeWindow(w) }, t.op.span)
	t.mu.Unlock()

	t.emitter.drain()
}

func (t *timedWindowSubscriber[T]) closeWindow(w *Window[T]) {
	t.mu.Lock()
	for i, o := range t.open {
		if o == w {
			t.open = append(t.open[:i], t.open[i+1:]...)
			break
		}
	}
	delete(t.closers, w)
	w.terminate(nil)
	t.mu.Unlock()
	w.drain()
}

func (t *timedWindowSubscriber[T]) OnNext(v T) {
	if t.cancelled.Load() {
		return
	}
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		OnNextDropped(v)
		return
	}
	open := append([]*Window[T](nil), t.open...)
	for _, w := range open {
		w.push(v)
	}
	t.mu.Unlock()

	for _, w := range open {
		w.drain()
	}
}

func (t *timedWindowSubscriber[T]) OnError(err error) {
	if !t.finish(err) {
		OnErrorDropped(err)
	}
}

func (t *timedWindowSubscriber[T]) OnComplete() {
	t.finish(nil)
}

// finish stops the timers, terminates every open window and ends the window
// sequence. It reports false if already finished.
func (t *timedWindowSubscriber[T]) finish(err error) bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return false
	}
	t.done = true
	open := t.open
	t.open = nil
	for _, w := range open {
		w.terminate(err)
	}
	timers := make([]Cancellable, 0, len(t.closers)+1)
	if t.opener != nil {
		timers = append(timers, t.opener)
	}
	for _, c := range t.closers {
		timers = append(timers, c)
	}
	t.closers = nil
	t.mu.Unlock()

	for _, c := range timers {
		c.Cancel()
	}
	for _, w := range open {
		w.drain()
	}
	t.emitter.complete(err)
	return true
}

func (t *timedWindowSubscriber[T]) fail(err error) {
	t.upstream.Cancel()
	if !t.finish(err) {
		OnErrorDropped(err)
	}
}

func (t *timedWindowSubscriber[T]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		t.fail(err)
		return
	}
	t.emitter.request(n)
}

// Cancel stops the timers and the source and completes the windows still
// open.
func (t *timedWindowSubscriber[T]) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.upstream.Cancel()
	t.emitter.cancel()
	t.finish(nil)
}
