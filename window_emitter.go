package flowz

import (
	"sync"

	"go.uber.org/atomic"
)

// windowEmitter hands windows to the downstream of a windowing operator in
// the order they were opened, only as far as the downstream requested them.
// Windows opened ahead of demand wait in pending. With strict set, opening a
// window that could not be emitted right away is refused instead.
//
// Every downstream signal is issued by the drain loop, which keeps the
// downstream single-writer while windows are opened from timer and boundary
// goroutines.
type windowEmitter[T any] struct {
	actual    Subscriber[*Window[T]]
	operator  string
	kind      WindowType
	strict    bool
	requested Demand

	mu       sync.Mutex
	pending  []*Window[T]
	done     bool
	err      error
	finished bool

	wip       atomic.Int32
	cancelled atomic.Bool
}

func newWindowEmitter[T any](actual Subscriber[*Window[T]], operator string, kind WindowType, strict bool) *windowEmitter[T] {
	return &windowEmitter[T]{
		actual:   actual,
		operator: operator,
		kind:     kind,
		strict:   strict,
	}
}

// offer queues w for emission. The caller must call drain afterwards.
func (e *windowEmitter[T]) offer(w *Window[T]) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.strict && e.requested.Get() <= int64(len(e.pending)) {
		return ErrMissingBackpressure
	}
	e.pending = append(e.pending, w)
	WindowsOpened.WithLabelValues(e.operator, string(e.kind)).Inc()
	return nil
}

func (e *windowEmitter[T]) request(n int64) {
	e.requested.Add(n)
	e.drain()
}

// complete ends the window sequence once the pending windows are emitted.
// An error is delivered immediately and discards pending windows.
func (e *windowEmitter[T]) complete(err error) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		if err != nil {
			OnErrorDropped(err)
		}
		return
	}
	e.done = true
	e.err = err
	e.mu.Unlock()
	e.drain()
}

func (e *windowEmitter[T]) cancel() {
	e.cancelled.Store(true)
	e.drain()
}

func (e *windowEmitter[T]) drain() {
	if e.wip.Inc() != 1 {
		return
	}
	missed := int32(1)
	for {
		for e.emitOne() {
		}
		missed = e.wip.Sub(missed)
		if missed == 0 {
			return
		}
	}
}

// emitOne delivers at most one signal and reports whether the drain should
// look for another.
func (e *windowEmitter[T]) emitOne() bool {
	e.mu.Lock()
	if e.finished {
		e.mu.Unlock()
		return false
	}
	if e.cancelled.Load() {
		e.finished = true
		e.pending = nil
		e.mu.Unlock()
		return false
	}
	if e.done && (e.err != nil || len(e.pending) == 0) {
		e.finished = true
		e.pending = nil
		err := e.err
		e.mu.Unlock()
		if err != nil {
			e.actual.OnError(err)
		} else {
			e.actual.OnComplete()
		}
		return false
	}
	if len(e.pending) == 0 || e.requested.Get() == 0 {
		e.mu.Unlock()
		return false
	}
	w := e.pending[0]
	e.pending[0] = nil
	e.pending = e.pending[1:]
	e.requested.Produced(1)
	e.mu.Unlock()

	e.actual.OnNext(w)
	return true
}
