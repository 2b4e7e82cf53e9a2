package flowz

import (
	"errors"

	"go.uber.org/atomic"
)

var errNilSubscription = errors.New("flowz: OnSubscribe called with a nil subscription")

// validateSubscription reports whether next may be accepted by a subscriber
// whose current subscription is current. A duplicate is cancelled and
// reported to the drop channel.
func validateSubscription(current, next Subscription) bool {
	if next == nil {
		OnErrorDropped(errNilSubscription)
		return false
	}
	if current != nil {
		next.Cancel()
		OnErrorDropped(ErrDuplicateSubscription)
		return false
	}
	return true
}

// emptySubscription ignores every request. It is handed to subscribers that
// are terminated immediately.
type emptySubscription struct{}

func (emptySubscription) Request(int64) {}
func (emptySubscription) Cancel()       {}

// subscribeError terminates s with err without emitting any item.
func subscribeError[T any](s Subscriber[T], err error) {
	s.OnSubscribe(emptySubscription{})
	s.OnError(err)
}

// subscribeComplete completes s without emitting any item.
func subscribeComplete[T any](s Subscriber[T]) {
	s.OnSubscribe(emptySubscription{})
	s.OnComplete()
}

// upstreamRef holds a subscription that may be cancelled before it arrives.
// Cancelling an empty ref cancels the subscription as soon as it is set.
type upstreamRef struct {
	s atomic.Pointer[subscriptionBox]
}

type subscriptionBox struct {
	s Subscription
}

var cancelledBox = &subscriptionBox{}

// set stores s and reports whether it was accepted. A ref that was already
// cancelled cancels s; a ref already holding a subscription rejects s as a
// duplicate.
func (r *upstreamRef) set(s Subscription) bool {
	if s == nil {
		OnErrorDropped(errNilSubscription)
		return false
	}
	box := &subscriptionBox{s: s}
	if r.s.CompareAndSwap(nil, box) {
		return true
	}
	s.Cancel()
	if r.s.Load() != cancelledBox {
		OnErrorDropped(ErrDuplicateSubscription)
	}
	return false
}

// get returns the current subscription or nil.
func (r *upstreamRef) get() Subscription {
	box := r.s.Load()
	if box == nil || box == cancelledBox {
		return nil
	}
	return box.s
}

// request forwards n upstream when a subscription is present.
func (r *upstreamRef) request(n int64) {
	if s := r.get(); s != nil {
		s.Request(n)
	}
}

// cancel cancels the held subscription, if any, and prevents future ones.
func (r *upstreamRef) cancel() {
	prev := r.s.Swap(cancelledBox)
	if prev != nil && prev != cancelledBox {
		prev.s.Cancel()
	}
}

// cancelled reports whether cancel has been called.
func (r *upstreamRef) cancelled() bool {
	return r.s.Load() == cancelledBox
}
