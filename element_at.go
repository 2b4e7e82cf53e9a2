package flowz

import "fmt"

// ElementAt emits the item at a zero-based index of its source and cancels
// the source. If the source completes first it emits the configured default
// or fails with ErrIndexOutOfRange.
type ElementAt[T any] struct {
	name     string
	source   Publisher[T]
	index    int64
	fallback func() (T, error)
}

// NewElementAt creates an operator selecting the item at index.
// A negative index fails every subscription with ErrIndexOutOfRange.
//
// Example:
//
//	// Third item, or zero when the source is shorter.
//	third := flowz.NewElementAt(src, 2).WithDefault(func() (int, error) {
//		return 0, nil
//	})
func NewElementAt[T any](source Publisher[T], index int64) *ElementAt[T] {
	return &ElementAt[T]{
		name:   "element-at",
		source: source,
		index:  index,
	}
}

// WithDefault sets the supplier used when the source has no item at the
// index. A supplier error fails the sequence.
func (e *ElementAt[T]) WithDefault(fallback func() (T, error)) *ElementAt[T] {
	e.fallback = fallback
	return e
}

// WithName sets a custom name for this operator.
func (e *ElementAt[T]) WithName(name string) *ElementAt[T] {
	e.name = name
	return e
}

// Subscribe implements Publisher.
func (e *ElementAt[T]) Subscribe(s Subscriber[T]) {
	if e.index < 0 {
		subscribeError(s, fmt.Errorf("%w: negative index %d", ErrIndexOutOfRange, e.index))
		return
	}
	e.source.Subscribe(&elementAtSubscriber[T]{
		scalarBase: scalarBase[T]{actual: s},
		op:         e,
	})
}

func (e *ElementAt[T]) Name() string {
	return e.name
}

type elementAtSubscriber[T any] struct {
	scalarBase[T]
	op    *ElementAt[T]
	index int64
}

func (e *elementAtSubscriber[T]) OnSubscribe(s Subscription) {
	e.subscribed(s)
}

func (e *elementAtSubscriber[T]) OnNext(v T) {
	if e.dropNext(v) {
		return
	}
	if e.index != e.op.index {
		e.index++
		return
	}
	e.done = true
	e.upstream.cancel()
	e.complete(v)
}

func (e *elementAtSubscriber[T]) OnError(err error) {
	e.upstreamError(err)
}

func (e *elementAtSubscriber[T]) OnComplete() {
	if !e.upstreamComplete() {
		return
	}
	if e.op.fallback == nil {
		e.fail(fmt.Errorf("%w: index %d, source had %d items", ErrIndexOutOfRange, e.op.index, e.index))
		return
	}
	v, err := call(e.op.fallback)
	if err != nil {
		var zero T
		e.fail(wrapCallback(zero, err, e.op.name))
		return
	}
	e.complete(v)
}
