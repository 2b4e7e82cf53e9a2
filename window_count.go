package flowz

import (
	"sync"

	"go.uber.org/atomic"
)

// WindowCount splits a stream into windows by item count. Every skip-th
// item opens a new window, and every window closes once it holds size
// items.
//
// With skip == size (the default) windows are contiguous, with skip < size
// they overlap and items are broadcast to every open window, and with
// skip > size the items between the end of one window and the start of the
// next belong to no window and are dropped.
type WindowCount[T any] struct {
	name   string
	source Publisher[T]
	size   int
	skip   int
	clock  Clock
}

// NewWindowCount creates an operator emitting windows of size items.
// Sizes below one are raised to one.
//
// When to use:
//   - Fixed-size batches consumed as streams
//   - Rolling computations over the last N items (with WithSkip)
//
// Example:
//
//	// Windows of three items: [1 2 3] [4 5 6] [7 8 9] [10]
//	windows := flowz.NewWindowCount(flowz.Range(1, 10), 3)
//
//	// Every second item starts a window of four: overlapping windows
//	rolling := flowz.NewWindowCount(readings, 4).WithSkip(2)
func NewWindowCount[T any](source Publisher[T], size int) *WindowCount[T] {
	if size < 1 {
		size = 1
	}
	return &WindowCount[T]{
		name:   "window-count",
		source: source,
		size:   size,
		skip:   size,
		clock:  RealClock,
	}
}

// WithSkip sets how many items separate the starts of consecutive windows.
// Values below one are raised to one.
func (wc *WindowCount[T]) WithSkip(skip int) *WindowCount[T] {
	if skip < 1 {
		skip = 1
	}
	wc.skip = skip
	return wc
}

// WithClock sets the clock used for window timestamps.
func (wc *WindowCount[T]) WithClock(clock Clock) *WindowCount[T] {
	wc.clock = clock
	return wc
}

// WithName sets a custom name for this operator.
func (wc *WindowCount[T]) WithName(name string) *WindowCount[T] {
	wc.name = name
	return wc
}

// Subscribe implements Publisher.
func (wc *WindowCount[T]) Subscribe(s Subscriber[*Window[T]]) {
	wc.source.Subscribe(&countWindowSubscriber[T]{
		op:      wc,
		emitter: newWindowEmitter(s, wc.name, CountWindow, false),
	})
}

func (wc *WindowCount[T]) Name() string {
	return wc.name
}

type countWindowSubscriber[T any] struct {
	op       *WindowCount[T]
	emitter  *windowEmitter[T]
	upstream Subscription

	firstRequest atomic.Bool
	cancelled    atomic.Bool

	mu    sync.Mutex
	open  []*Window[T]
	index int64
	done  bool
}

func (c *countWindowSubscriber[T]) OnSubscribe(s Subscription) {
	if !validateSubscription(c.upstream, s) {
		return
	}
	c.upstream = s
	c.emitter.actual.OnSubscribe(c)
}

func (c *countWindowSubscriber[T]) OnNext(v T) {
	if c.cancelled.Load() {
		return
	}
	size, skip := c.op.size, int64(c.op.skip)

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		OnNextDropped(v)
		return
	}
	if c.index%skip == 0 {
		// Count windows never buffer more than size items.
		w := newWindow[T](CountWindow, size, c.op.clock)
		if err := c.emitter.offer(w); err == nil {
			c.open = append(c.open, w)
		}
	}
	c.index++

	touched := c.open
	var kept []*Window[T]
	for _, w := range touched {
		w.push(v)
		if w.count >= size {
			w.terminate(nil)
		}
		if !w.IsClosed() {
			kept = append(kept, w)
		}
	}
	c.open = kept
	c.mu.Unlock()

	for _, w := range touched {
		w.drain()
	}
	c.emitter.drain()
}

func (c *countWindowSubscriber[T]) OnError(err error) {
	if !c.finish(err) {
		OnErrorDropped(err)
	}
}

func (c *countWindowSubscriber[T]) OnComplete() {
	c.finish(nil)
}

// finish terminates every open window and the window sequence with err,
// or completes them when err is nil. It reports false if already finished.
func (c *countWindowSubscriber[T]) finish(err error) bool {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	c.done = true
	open := c.open
	c.open = nil
	for _, w := range open {
		w.terminate(err)
	}
	c.mu.Unlock()

	for _, w := range open {
		w.drain()
	}
	c.emitter.complete(err)
	return true
}

// Request translates window demand into item demand: the first window
// needs size items and each further window skip more.
func (c *countWindowSubscriber[T]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		c.upstream.Cancel()
		if !c.finish(err) {
			OnErrorDropped(err)
		}
		return
	}
	size, skip := int64(c.op.size), int64(c.op.skip)
	var items int64
	if c.firstRequest.CompareAndSwap(false, true) {
		items = AddCap(size, MulCap(skip, n-1))
	} else {
		items = MulCap(skip, n)
	}
	c.emitter.request(n)
	c.upstream.Request(items)
}

// Cancel stops opening windows and completes the ones still open.
func (c *countWindowSubscriber[T]) Cancel() {
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	c.upstream.Cancel()
	c.emitter.cancel()
	c.finish(nil)
}
