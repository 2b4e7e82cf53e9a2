package flowz

import (
	"sync"

	"go.uber.org/atomic"
)

// WindowWhen splits a stream into windows whose boundaries are published
// by other sources. Each item of openings opens a new window, and the
// source returned by closing for that item closes it with its first item or
// its completion. Windows may overlap; items are broadcast to every open
// window.
//
// When openings completes while no window is open, one final window opens
// and stays open until the source terminates. An error from openings or
// from any closing source fails every open window and the sequence.
//
// Like WindowTimed, the source is requested without bound and an opening
// the downstream has not requested fails the sequence with
// ErrMissingBackpressure. Openings are requested one at a time.
type WindowWhen[T, O, C any] struct {
	name     string
	source   Publisher[T]
	openings Publisher[O]
	closing  func(O) Publisher[C]
	clock    Clock
	capacity int
}

// NewWindowWhen creates a signal-driven windowing operator.
//
// Example:
//
//	// A window per session, closed by the session's logout event.
//	perSession := flowz.NewWindowWhen(events, logins, func(l Login) flowz.Publisher[Logout] {
//		return logoutsOf(l.SessionID)
//	})
func NewWindowWhen[T, O, C any](source Publisher[T], openings Publisher[O], closing func(O) Publisher[C]) *WindowWhen[T, O, C] {
	return &WindowWhen[T, O, C]{
		name:     "window-when",
		source:   source,
		openings: openings,
		closing:  closing,
		clock:    RealClock,
		capacity: DefaultWindowCapacity,
	}
}

// WithCapacity sets how many items each window buffers for its subscriber.
func (ww *WindowWhen[T, O, C]) WithCapacity(capacity int) *WindowWhen[T, O, C] {
	ww.capacity = capacity
	return ww
}

// WithClock sets the clock used for window timestamps.
func (ww *WindowWhen[T, O, C]) WithClock(clock Clock) *WindowWhen[T, O, C] {
	ww.clock = clock
	return ww
}

// WithName sets a custom name for this operator.
func (ww *WindowWhen[T, O, C]) WithName(name string) *WindowWhen[T, O, C] {
	ww.name = name
	return ww
}

// Subscribe implements Publisher.
func (ww *WindowWhen[T, O, C]) Subscribe(s Subscriber[*Window[T]]) {
	ww.source.Subscribe(&whenWindowSubscriber[T, O, C]{
		op:       ww,
		emitter:  newWindowEmitter(s, ww.name, SignalWindow, true),
		closings: make(map[*closingSubscriber[T, O, C]]struct{}),
	})
}

func (ww *WindowWhen[T, O, C]) Name() string {
	return ww.name
}

type whenWindowSubscriber[T, O, C any] struct {
	op       *WindowWhen[T, O, C]
	emitter  *windowEmitter[T]
	upstream Subscription

	openingsRef upstreamRef
	cancelled   atomic.Bool

	mu           sync.Mutex
	open         []*Window[T]
	closings     map[*closingSubscriber[T, O, C]]struct{}
	openingsDone bool
	done         bool
}

func (w *whenWindowSubscriber[T, O, C]) OnSubscribe(s Subscription) {
	if !validateSubscription(w.upstream, s) {
		return
	}
	w.upstream = s
	w.emitter.actual.OnSubscribe(w)
	if w.cancelled.Load() {
		return
	}
	w.op.openings.Subscribe(&openingSubscriber[T, O, C]{parent: w})
	s.Request(Unbounded)
}

// openWith opens a window for the opening value o and subscribes to its
// closing source.
func (w *whenWindowSubscriber[T, O, C]) openWith(o O) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	win := newWindow[T](SignalWindow, w.op.capacity, w.op.clock)
	if err := w.emitter.offer(win); err != nil {
		w.mu.Unlock()
		w.fail(err)
		return
	}
	w.open = append(w.open, win)
	w.mu.Unlock()

	w.emitter.drain()

	closing, err := call(func() (Publisher[C], error) {
		return w.op.closing(o), nil
	})
	if err == nil && closing == nil {
		err = ErrNilSource
	}
	if err != nil {
		w.fail(wrapCallback(o, err, w.op.name))
		return
	}

	cs := &closingSubscriber[T, O, C]{parent: w, window: win}
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.closings[cs] = struct{}{}
	w.mu.Unlock()
	closing.Subscribe(cs)
}

// closeWindow completes win on behalf of its closing subscriber.
func (w *whenWindowSubscriber[T, O, C]) closeWindow(cs *closingSubscriber[T, O, C]) {
	w.mu.Lock()
	delete(w.closings, cs)
	for i, o := range w.open {
		if o == cs.window {
			w.open = append(w.open[:i], w.open[i+1:]...)
			break
		}
	}
	cs.window.terminate(nil)
	w.mu.Unlock()
	cs.window.drain()
}

// openingsCompleted opens the final window if none is open.
func (w *whenWindowSubscriber[T, O, C]) openingsCompleted() {
	w.mu.Lock()
	if w.done || w.openingsDone {
		w.mu.Unlock()
		return
	}
	w.openingsDone = true
	if len(w.open) != 0 {
		w.mu.Unlock()
		return
	}
	win := newWindow[T](SignalWindow, w.op.capacity, w.op.clock)
	if err := w.emitter.offer(win); err != nil {
		w.mu.Unlock()
		w.fail(err)
		return
	}
	w.open = append(w.open, win)
	w.mu.Unlock()
	w.emitter.drain()
}

func (w *whenWindowSubscriber[T, O, C]) OnNext(v T) {
	if w.cancelled.Load() {
		return
	}
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		OnNextDropped(v)
		return
	}
	open := append([]*Window[T](nil), w.open...)
	for _, win := range open {
		win.push(v)
	}
	w.mu.Unlock()

	for _, win := range open {
		win.drain()
	}
}

func (w *whenWindowSubscriber[T, O, C]) OnError(err error) {
	w.openingsRef.cancel()
	if !w.finish(err) {
		OnErrorDropped(err)
	}
}

func (w *whenWindowSubscriber[T, O, C]) OnComplete() {
	w.openingsRef.cancel()
	w.finish(nil)
}

// finish cancels the boundary sources, terminates the open windows and
// ends the window sequence. It reports false if already finished.
func (w *whenWindowSubscriber[T, O, C]) finish(err error) bool {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return false
	}
	w.done = true
	open := w.open
	w.open = nil
	for _, win := range open {
		win.terminate(err)
	}
	closings := w.closings
	w.closings = nil
	w.mu.Unlock()

	for cs := range closings {
		cs.upstream.cancel()
	}
	for _, win := range open {
		win.drain()
	}
	w.emitter.complete(err)
	return true
}

// fail cancels every source and fails the sequence.
func (w *whenWindowSubscriber[T, O, C]) fail(err error) {
	w.upstream.Cancel()
	w.openingsRef.cancel()
	if !w.finish(err) {
		OnErrorDropped(err)
	}
}

func (w *whenWindowSubscriber[T, O, C]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		w.fail(err)
		return
	}
	w.emitter.request(n)
}

// Cancel stops the source and the boundary sources and completes the
// windows still open.
func (w *whenWindowSubscriber[T, O, C]) Cancel() {
	if !w.cancelled.CompareAndSwap(false, true) {
		return
	}
	w.upstream.Cancel()
	w.openingsRef.cancel()
	w.emitter.cancel()
	w.finish(nil)
}

// openingSubscriber consumes the openings source one item at a time.
type openingSubscriber[T, O, C any] struct {
	parent *whenWindowSubscriber[T, O, C]
	done   bool
}

func (o *openingSubscriber[T, O, C]) OnSubscribe(s Subscription) {
	if o.parent.openingsRef.set(s) {
		s.Request(1)
	}
}

func (o *openingSubscriber[T, O, C]) OnNext(v O) {
	if o.done {
		OnNextDropped(v)
		return
	}
	o.parent.openWith(v)
	o.parent.openingsRef.request(1)
}

func (o *openingSubscriber[T, O, C]) OnError(err error) {
	if o.done {
		OnErrorDropped(err)
		return
	}
	o.done = true
	o.parent.fail(err)
}

func (o *openingSubscriber[T, O, C]) OnComplete() {
	if o.done {
		return
	}
	o.done = true
	o.parent.openingsCompleted()
}

// closingSubscriber closes one window on the first signal of its source.
type closingSubscriber[T, O, C any] struct {
	parent   *whenWindowSubscriber[T, O, C]
	window   *Window[T]
	upstream upstreamRef
	fired    atomic.Bool
}

func (c *closingSubscriber[T, O, C]) OnSubscribe(s Subscription) {
	if c.upstream.set(s) {
		s.Request(1)
	}
}

func (c *closingSubscriber[T, O, C]) OnNext(C) {
	if !c.fired.CompareAndSwap(false, true) {
		return
	}
	c.upstream.cancel()
	c.parent.closeWindow(c)
}

func (c *closingSubscriber[T, O, C]) OnError(err error) {
	if !c.fired.CompareAndSwap(false, true) {
		OnErrorDropped(err)
		return
	}
	c.parent.fail(err)
}

func (c *closingSubscriber[T, O, C]) OnComplete() {
	if !c.fired.CompareAndSwap(false, true) {
		return
	}
	c.parent.closeWindow(c)
}
