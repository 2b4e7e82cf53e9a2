package flowz

import (
	"fmt"

	"go.uber.org/atomic"
)

// Sequence is a finite, replayable source backed by an indexed collection.
// Every subscription emits the items in index order and then completes.
// It honors bounded demand item by item, switches to a tight loop once
// demand is Unbounded, and offers synchronous fusion.
type Sequence[T any] struct {
	name string
	n    int
	at   func(int) T
}

// FromSlice creates a source emitting the items of the slice. The slice is
// read at emission time and must not be modified while subscribed.
func FromSlice[T any](items []T) *Sequence[T] {
	return &Sequence[T]{
		name: "from-slice",
		n:    len(items),
		at:   func(i int) T { return items[i] },
	}
}

// Just creates a source emitting the given items.
func Just[T any](items ...T) *Sequence[T] {
	s := FromSlice(items)
	s.name = "just"
	return s
}

// Range creates a source emitting count consecutive integers starting at start.
func Range(start, count int) *Sequence[int] {
	if count < 0 {
		count = 0
	}
	return &Sequence[int]{
		name: "range",
		n:    count,
		at:   func(i int) int { return start + i },
	}
}

// WithName sets a custom name for this source.
func (q *Sequence[T]) WithName(name string) *Sequence[T] {
	q.name = name
	return q
}

// Name returns the source name.
func (q *Sequence[T]) Name() string {
	return q.name
}

// Len returns the number of items each subscription emits.
func (q *Sequence[T]) Len() int {
	return q.n
}

// Subscribe implements Publisher.
func (q *Sequence[T]) Subscribe(s Subscriber[T]) {
	if q.n == 0 {
		subscribeComplete(s)
		return
	}
	s.OnSubscribe(&sequenceSubscription[T]{actual: s, n: q.n, at: q.at})
}

type sequenceSubscription[T any] struct {
	actual Subscriber[T]
	n      int
	at     func(int) T

	// index is owned by whoever runs the emission loop, or by the fused
	// consumer.
	index int

	requested  Demand
	cancelled  atomic.Bool
	badRequest atomic.Error
	fused      bool
}

func (q *sequenceSubscription[T]) Request(n int64) {
	if q.fused {
		return
	}
	if err := validateRequest(n); err != nil {
		q.badRequest.Store(err)
		// Enter the emission loop, or wake the running one, so that it
		// observes the error.
		n = 1
	}
	if q.requested.Add(n) != 0 {
		return
	}
	if n == Unbounded && q.badRequest.Load() == nil {
		q.fastPath()
	} else {
		q.slowPath(n)
	}
}

func (q *sequenceSubscription[T]) Cancel() {
	q.cancelled.Store(true)
}

func (q *sequenceSubscription[T]) fastPath() {
	for i := q.index; i < q.n; i++ {
		if q.checkTerminated() {
			return
		}
		q.actual.OnNext(q.at(i))
	}
	if q.checkTerminated() {
		return
	}
	q.actual.OnComplete()
}

func (q *sequenceSubscription[T]) slowPath(n int64) {
	var emitted int64
	i := q.index
	for {
		if q.checkTerminated() {
			return
		}
		for emitted != n && i < q.n {
			if q.checkTerminated() {
				return
			}
			q.actual.OnNext(q.at(i))
			i++
			emitted++
		}
		if q.checkTerminated() {
			return
		}
		if i == q.n {
			q.actual.OnComplete()
			return
		}

		n = q.requested.Get()
		if n == emitted {
			q.index = i
			n = q.requested.Produced(emitted)
			if n == 0 {
				return
			}
			emitted = 0
		}
	}
}

// checkTerminated reports whether emission must stop, delivering a pending
// invalid-request error first.
func (q *sequenceSubscription[T]) checkTerminated() bool {
	if q.cancelled.Load() {
		return true
	}
	if err := q.badRequest.Load(); err != nil {
		q.cancelled.Store(true)
		q.actual.OnError(err)
		return true
	}
	return false
}

func (q *sequenceSubscription[T]) RequestFusion(mode FusionMode) FusionMode {
	if mode&FusionSync != 0 {
		q.fused = true
		return FusionSync
	}
	return FusionNone
}

func (q *sequenceSubscription[T]) Poll() (T, bool, error) {
	if q.index >= q.n {
		var zero T
		return zero, false, nil
	}
	v := q.at(q.index)
	q.index++
	return v, true, nil
}

func (q *sequenceSubscription[T]) Peek() (T, bool, error) {
	if q.index >= q.n {
		var zero T
		return zero, false, nil
	}
	return q.at(q.index), true, nil
}

func (q *sequenceSubscription[T]) Size() int {
	return q.n - q.index
}

func (q *sequenceSubscription[T]) IsEmpty() bool {
	return q.index >= q.n
}

func (q *sequenceSubscription[T]) Clear() {
	q.index = q.n
}

// Empty returns a source that completes immediately.
func Empty[T any]() Publisher[T] {
	return PublisherFunc[T](subscribeComplete[T])
}

// Fail returns a source that signals err immediately.
func Fail[T any](err error) Publisher[T] {
	return PublisherFunc[T](func(s Subscriber[T]) {
		subscribeError(s, err)
	})
}

// Never returns a source that neither emits nor terminates.
func Never[T any]() Publisher[T] {
	return PublisherFunc[T](func(s Subscriber[T]) {
		s.OnSubscribe(emptySubscription{})
	})
}

// Defer calls factory for every subscription and subscribes to the
// publisher it returns. Factory failures, including a nil publisher, are
// signaled to the subscriber.
func Defer[T any](factory func() (Publisher[T], error)) Publisher[T] {
	return PublisherFunc[T](func(s Subscriber[T]) {
		p, err := call(factory)
		if err != nil {
			subscribeError(s, fmt.Errorf("defer: %w", err))
			return
		}
		if p == nil {
			subscribeError(s, ErrNilSource)
			return
		}
		p.Subscribe(s)
	})
}
