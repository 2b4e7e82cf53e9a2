package flowz

import (
	"go.uber.org/atomic"
)

// States of a deferred scalar result. The has-request/has-value state is
// also the terminal state entered on cancellation.
const (
	noRequestNoValue int32 = iota
	noRequestHasValue
	hasRequestNoValue
	hasRequestHasValue
)

// scalarBase is the downstream side of an operator that emits at most one
// result after its source completes. The result is held until the
// downstream requests it, and emitted at most once.
type scalarBase[R any] struct {
	actual   Subscriber[R]
	upstream upstreamRef
	state    atomic.Int32
	value    R

	// done is only touched by upstream signals.
	done bool
}

// subscribed stores the upstream subscription, exposes the result handle to
// the downstream and requests everything.
func (b *scalarBase[R]) subscribed(s Subscription) {
	if !b.upstream.set(s) {
		return
	}
	b.actual.OnSubscribe(b)
	s.Request(Unbounded)
}

// complete publishes v, emitting it now if it was already requested.
func (b *scalarBase[R]) complete(v R) {
	for {
		switch b.state.Load() {
		case noRequestHasValue, hasRequestHasValue:
			return
		case hasRequestNoValue:
			if b.state.CompareAndSwap(hasRequestNoValue, hasRequestHasValue) {
				b.actual.OnNext(v)
				b.actual.OnComplete()
			}
			return
		}
		b.value = v
		if b.state.CompareAndSwap(noRequestNoValue, noRequestHasValue) {
			return
		}
	}
}

// fail delivers err unless the result was already emitted or cancelled.
func (b *scalarBase[R]) fail(err error) {
	if b.state.Swap(hasRequestHasValue) == hasRequestHasValue {
		OnErrorDropped(err)
		return
	}
	var zero R
	b.value = zero
	b.actual.OnError(err)
}

// abort is used by callback failures: it stops upstream and fails.
func (b *scalarBase[R]) abort(err error) {
	b.done = true
	b.upstream.cancel()
	b.fail(err)
}

// Request implements Subscription for the downstream.
func (b *scalarBase[R]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		b.upstream.cancel()
		b.fail(err)
		return
	}
	for {
		switch b.state.Load() {
		case hasRequestNoValue, hasRequestHasValue:
			return
		case noRequestHasValue:
			if b.state.CompareAndSwap(noRequestHasValue, hasRequestHasValue) {
				v := b.value
				var zero R
				b.value = zero
				b.actual.OnNext(v)
				b.actual.OnComplete()
			}
			return
		}
		if b.state.CompareAndSwap(noRequestNoValue, hasRequestNoValue) {
			return
		}
	}
}

// Cancel implements Subscription for the downstream.
func (b *scalarBase[R]) Cancel() {
	b.state.Store(hasRequestHasValue)
	b.upstream.cancel()
}

// dropNext reports whether an upstream item arrived after termination,
// routing it to the drop channel.
func (b *scalarBase[R]) dropNext(v any) bool {
	if b.done {
		OnNextDropped(v)
		return true
	}
	return false
}

// upstreamError terminates with err unless already done.
func (b *scalarBase[R]) upstreamError(err error) {
	if b.done {
		OnErrorDropped(err)
		return
	}
	b.done = true
	b.fail(err)
}

// upstreamComplete marks the upstream as finished and reports whether the
// operator still has to produce its result.
func (b *scalarBase[R]) upstreamComplete() bool {
	if b.done {
		return false
	}
	b.done = true
	return true
}
