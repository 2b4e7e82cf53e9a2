package flowz

import "go.uber.org/atomic"

// Take limits the stream to the first n items. After the n-th item it
// cancels the source and completes.
type Take[T any] struct {
	name   string
	source Publisher[T]
	count  int64
}

// NewTake creates an operator that takes only the first n items of source.
// With n <= 0 the source is cancelled immediately and the result is empty.
//
// When to use:
//   - Limit processing to a sample of data
//   - Early termination of infinite streams
//
// Example:
//
//	// Process only the first 100 items
//	limited := flowz.NewTake(events, 100)
func NewTake[T any](source Publisher[T], n int64) *Take[T] {
	return &Take[T]{
		name:   "take",
		source: source,
		count:  n,
	}
}

// WithName sets a custom name for this operator.
func (t *Take[T]) WithName(name string) *Take[T] {
	t.name = name
	return t
}

// Subscribe implements Publisher.
func (t *Take[T]) Subscribe(s Subscriber[T]) {
	t.source.Subscribe(&takeSubscriber[T]{
		passThrough: passThrough[T, T]{actual: s},
		limit:       t.count,
		remaining:   t.count,
	})
}

func (t *Take[T]) Name() string {
	return t.name
}

type takeSubscriber[T any] struct {
	passThrough[T, T]
	limit     int64
	remaining int64
	requested atomic.Int64
}

func (t *takeSubscriber[T]) OnSubscribe(s Subscription) {
	if t.remaining > 0 {
		t.subscribed(s, t)
		return
	}
	if !validateSubscription(t.upstream, s) {
		return
	}
	t.upstream = s
	t.done = true
	s.Cancel()
	subscribeComplete(t.actual)
}

func (t *takeSubscriber[T]) OnNext(v T) {
	if t.done {
		OnNextDropped(v)
		return
	}
	t.remaining--
	last := t.remaining == 0
	if last {
		t.done = true
		t.upstream.Cancel()
	}
	t.actual.OnNext(v)
	if last {
		t.actual.OnComplete()
	}
}

// Request forwards demand to the source, never asking for more than the
// items still to be taken.
func (t *takeSubscriber[T]) Request(n int64) {
	if n <= 0 {
		t.upstream.Request(n)
		return
	}
	for {
		r := t.requested.Load()
		if r >= t.limit {
			return
		}
		next := min(AddCap(r, n), t.limit)
		if t.requested.CompareAndSwap(r, next) {
			t.upstream.Request(next - r)
			return
		}
	}
}
