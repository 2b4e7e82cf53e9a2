package flowz

import (
	"go.uber.org/atomic"
)

// LambdaSubscriber is a Subscriber assembled from callbacks. Nil callbacks
// are skipped, and a nil Error callback routes errors to the drop channel.
// It requests Initial items on subscription, defaulting to Unbounded.
type LambdaSubscriber[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
	Initial  int64

	upstream upstreamRef
	done     atomic.Bool
}

// Subscribe consumes p with the given callbacks, requesting Unbounded. The
// returned subscriber can be cancelled to stop consumption.
func Subscribe[T any](p Publisher[T], onNext func(T), onError func(error), onComplete func()) *LambdaSubscriber[T] {
	s := &LambdaSubscriber[T]{Next: onNext, Error: onError, Complete: onComplete}
	p.Subscribe(s)
	return s
}

// OnSubscribe implements Subscriber.
func (l *LambdaSubscriber[T]) OnSubscribe(s Subscription) {
	if !l.upstream.set(s) {
		return
	}
	n := l.Initial
	if n == 0 {
		n = Unbounded
	}
	s.Request(n)
}

// OnNext implements Subscriber.
func (l *LambdaSubscriber[T]) OnNext(v T) {
	if l.upstream.cancelled() {
		return
	}
	if l.done.Load() {
		OnNextDropped(v)
		return
	}
	if l.Next != nil {
		l.Next(v)
	}
}

// OnError implements Subscriber.
func (l *LambdaSubscriber[T]) OnError(err error) {
	if l.upstream.cancelled() {
		OnErrorDropped(err)
		return
	}
	if !l.done.CompareAndSwap(false, true) {
		OnErrorDropped(err)
		return
	}
	if l.Error == nil {
		OnErrorDropped(err)
		return
	}
	l.Error(err)
}

// OnComplete implements Subscriber.
func (l *LambdaSubscriber[T]) OnComplete() {
	if l.upstream.cancelled() {
		return
	}
	if !l.done.CompareAndSwap(false, true) {
		return
	}
	if l.Complete != nil {
		l.Complete()
	}
}

// Request asks upstream for n more items.
func (l *LambdaSubscriber[T]) Request(n int64) {
	l.upstream.request(n)
}

// Cancel stops consumption. Further signals are ignored.
func (l *LambdaSubscriber[T]) Cancel() {
	l.upstream.cancel()
}

// IsDone reports whether a terminal signal was received or Cancel was called.
func (l *LambdaSubscriber[T]) IsDone() bool {
	return l.done.Load() || l.upstream.cancelled()
}
