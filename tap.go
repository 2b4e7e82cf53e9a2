package flowz

import (
	"go.uber.org/atomic"
)

// Tap executes a side effect for each item while passing items through
// unchanged. It is used for logging, debugging and metrics, and for any
// observation that shouldn't modify the data flow.
//
// Tap also remembers the most recent item it observed across all its
// subscriptions, available through Last.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type Tap[T any] struct {
	name   string
	source Publisher[T]
	fn     func(T)
	last   atomic.Pointer[T]
}

// NewTap creates an operator calling fn for each item. A nil fn only
// records the last item. A panicking fn fails the sequence.
//
// Example:
//
//	debug := flowz.NewTap(orders, func(o Order) {
//		log.Printf("order %s at validation stage", o.ID)
//	})
func NewTap[T any](source Publisher[T], fn func(T)) *Tap[T] {
	return &Tap[T]{
		name:   "tap",
		source: source,
		fn:     fn,
	}
}

// WithName sets a custom name for this operator.
func (t *Tap[T]) WithName(name string) *Tap[T] {
	t.name = name
	return t
}

// Last returns the most recently observed item.
func (t *Tap[T]) Last() (T, bool) {
	if p := t.last.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Subscribe implements Publisher.
func (t *Tap[T]) Subscribe(s Subscriber[T]) {
	t.source.Subscribe(&tapSubscriber[T]{
		passThrough: passThrough[T, T]{actual: s},
		op:          t,
	})
}

func (t *Tap[T]) Name() string {
	return t.name
}

type tapSubscriber[T any] struct {
	passThrough[T, T]
	op *Tap[T]
}

func (t *tapSubscriber[T]) OnSubscribe(s Subscription) {
	t.subscribed(s, t)
}

func (t *tapSubscriber[T]) OnNext(v T) {
	if t.signalAvailable() {
		return
	}
	if t.done {
		OnNextDropped(v)
		return
	}
	if err := t.observe(v); err != nil {
		t.fail(err)
		return
	}
	t.actual.OnNext(v)
}

func (t *tapSubscriber[T]) observe(v T) error {
	t.op.last.Store(&v)
	if t.op.fn == nil {
		return nil
	}
	err := callErr(func() error {
		t.op.fn(v)
		return nil
	})
	if err != nil {
		return wrapCallback(v, err, t.op.name)
	}
	return nil
}

func (t *tapSubscriber[T]) Poll() (T, bool, error) {
	v, ok, err := t.qs.Poll()
	if err != nil || !ok {
		return v, false, err
	}
	if err := t.observe(v); err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// Peek records the head as the last item without running the side effect;
// the side effect runs once, when the item is polled.
func (t *tapSubscriber[T]) Peek() (T, bool, error) {
	v, ok, err := t.qs.Peek()
	if ok && err == nil {
		t.op.last.Store(&v)
	}
	return v, ok, err
}
