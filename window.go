package flowz

import (
	"time"

	"code.hybscloud.com/atomix"
	"go.uber.org/atomic"

	"github.com/zoobzio/flowz/internal/queue"
)

// DefaultWindowCapacity is the number of items a time or signal window
// buffers for a subscriber that has not requested them yet.
const DefaultWindowCapacity = 256

// WindowType identifies the boundary policy that produced a window.
type WindowType string

// Window types.
const (
	CountWindow  WindowType = "count"
	TimeWindow   WindowType = "time"
	SignalWindow WindowType = "signal"
)

// windowSerial numbers windows across all operators.
var windowSerial atomix.Uint32

// Window is a bounded sub-sequence of a windowed source, emitted as an item
// by the windowing operators and consumed as a Publisher in its own right.
//
// A Window accepts a single subscriber; later subscribers fail with
// ErrWindowSubscribed. Items arriving before the subscriber requests them
// are buffered up to the window's capacity, beyond which the window fails
// with ErrWindowOverflow. A Window supports asynchronous fusion.
type Window[T any] struct {
	id       uint32
	kind     WindowType
	openedAt time.Time
	closedAt atomic.Time
	clock    Clock

	queue *queue.SPSC[T]

	// Terminal state, written by the producing operator.
	done atomic.Bool
	err  atomic.Error

	// count is owned by the producing operator.
	count int

	actual     atomic.Pointer[Subscriber[T]]
	subscribed atomic.Bool
	cancelled  atomic.Bool
	requested  Demand
	badRequest atomic.Error
	wip        atomic.Int32

	// Owned by the drain loop.
	outputFused bool
	terminated  bool
}

func newWindow[T any](kind WindowType, capacity int, clock Clock) *Window[T] {
	return &Window[T]{
		id:       windowSerial.Add(1),
		kind:     kind,
		openedAt: clock.Now(),
		clock:    clock,
		queue:    queue.NewSPSC[T](capacity),
	}
}

// ID returns the window's process-unique serial number.
func (w *Window[T]) ID() uint32 {
	return w.id
}

// Type returns the boundary policy that produced the window.
func (w *Window[T]) Type() WindowType {
	return w.kind
}

// OpenedAt returns when the window was opened.
func (w *Window[T]) OpenedAt() time.Time {
	return w.openedAt
}

// ClosedAt returns when the window was closed, if it has been.
func (w *Window[T]) ClosedAt() (time.Time, bool) {
	if !w.done.Load() {
		return time.Time{}, false
	}
	return w.closedAt.Load(), true
}

// IsClosed reports whether the window has stopped receiving items.
func (w *Window[T]) IsClosed() bool {
	return w.done.Load()
}

// push buffers v. It must only be called by the owning operator, under its
// lock. The caller must call drain afterwards, outside the lock.
func (w *Window[T]) push(v T) {
	if w.done.Load() {
		return
	}
	w.count++
	if w.cancelled.Load() {
		return
	}
	if !w.queue.Offer(v) {
		OnNextDropped(v)
		w.terminate(ErrWindowOverflow)
	}
}

// terminate closes the window with err, or completes it when err is nil.
// The same locking rules as push apply.
func (w *Window[T]) terminate(err error) {
	if w.done.Load() {
		return
	}
	if err != nil {
		w.err.Store(err)
	}
	w.closedAt.Store(w.clock.Now())
	w.done.Store(true)
}

// Subscribe implements Publisher.
func (w *Window[T]) Subscribe(s Subscriber[T]) {
	if !w.subscribed.CompareAndSwap(false, true) {
		subscribeError(s, ErrWindowSubscribed)
		return
	}
	s.OnSubscribe(w)
	if w.cancelled.Load() {
		return
	}
	w.actual.Store(&s)
	w.drain()
}

func (w *Window[T]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		w.badRequest.Store(err)
	} else {
		w.requested.Add(n)
	}
	w.drain()
}

func (w *Window[T]) Cancel() {
	if w.cancelled.CompareAndSwap(false, true) {
		w.drain()
	}
}

func (w *Window[T]) RequestFusion(mode FusionMode) FusionMode {
	if mode&FusionAsync != 0 {
		w.outputFused = true
		return FusionAsync
	}
	return FusionNone
}

func (w *Window[T]) Poll() (T, bool, error) {
	v, ok := w.queue.Poll()
	return v, ok, nil
}

func (w *Window[T]) Peek() (T, bool, error) {
	v, ok := w.queue.Peek()
	return v, ok, nil
}

func (w *Window[T]) Size() int {
	return w.queue.Len()
}

func (w *Window[T]) IsEmpty() bool {
	return w.queue.IsEmpty()
}

func (w *Window[T]) Clear() {
	w.queue.Clear()
}

func (w *Window[T]) drain() {
	if w.wip.Inc() != 1 {
		return
	}
	missed := int32(1)
	for {
		if a := w.actual.Load(); a != nil {
			if w.outputFused {
				w.drainFused(*a)
			} else {
				w.drainRegular(*a)
			}
			return
		}
		missed = w.wip.Sub(missed)
		if missed == 0 {
			return
		}
	}
}

func (w *Window[T]) drainRegular(a Subscriber[T]) {
	missed := int32(1)
	for {
		r := w.requested.Get()
		var e int64
		for e != r {
			d := w.done.Load()
			v, ok := w.queue.Poll()
			if w.checkTerminated(d, !ok, a) {
				return
			}
			if !ok {
				break
			}
			a.OnNext(v)
			e++
		}
		if e == r && w.checkTerminated(w.done.Load(), w.queue.IsEmpty(), a) {
			return
		}
		if e != 0 {
			w.requested.Produced(e)
		}

		missed = w.wip.Sub(missed)
		if missed == 0 {
			return
		}
	}
}

func (w *Window[T]) drainFused(a Subscriber[T]) {
	missed := int32(1)
	for {
		if w.terminated {
			return
		}
		if w.cancelled.Load() {
			w.terminated = true
			w.queue.Clear()
			return
		}
		if err := w.badRequest.Load(); err != nil {
			w.terminated = true
			w.queue.Clear()
			a.OnError(err)
			return
		}

		d := w.done.Load()
		var zero T
		a.OnNext(zero)
		if d {
			w.terminated = true
			if err := w.err.Load(); err != nil {
				a.OnError(err)
			} else {
				a.OnComplete()
			}
			return
		}

		missed = w.wip.Sub(missed)
		if missed == 0 {
			return
		}
	}
}

// checkTerminated reports whether the regular drain must stop, delivering
// the terminal signal when the buffer is exhausted.
func (w *Window[T]) checkTerminated(done, empty bool, a Subscriber[T]) bool {
	if w.terminated {
		return true
	}
	if w.cancelled.Load() {
		w.terminated = true
		w.queue.Clear()
		return true
	}
	if err := w.badRequest.Load(); err != nil {
		w.terminated = true
		w.cancelled.Store(true)
		w.queue.Clear()
		a.OnError(err)
		return true
	}
	if done && empty {
		w.terminated = true
		if err := w.err.Load(); err != nil {
			a.OnError(err)
		} else {
			a.OnComplete()
		}
		return true
	}
	return false
}
