package flowz

import (
	"go.uber.org/atomic"
)

// Using ties the lifetime of a resource to a subscription. For every
// subscription it acquires a resource, derives a source from it, and
// releases the resource exactly once when the sequence completes, fails or
// is cancelled, whichever happens first.
//
// In eager mode, the default, the resource is released before the terminal
// signal is forwarded. A release failure replaces a completion with that
// error, and is attached as a suppressed cause to a forwarded error. In lazy
// mode the terminal signal is forwarded first and release failures go to the
// drop channel.
//
// Failure handling before subscription:
//   - acquire fails: the error is signaled, nothing is released.
//   - derive fails or returns nil: the resource is released, then the error
//     is signaled. If release also fails its error is signaled, with the
//     derive error suppressed.
//
// Example:
//
//	lines := flowz.NewUsing(
//		func() (*os.File, error) { return os.Open(path) },
//		func(f *os.File) (flowz.Publisher[string], error) { return readLines(f), nil },
//		func(f *os.File) error { return f.Close() },
//	)
type Using[S, T any] struct {
	name    string
	acquire func() (S, error)
	derive  func(S) (Publisher[T], error)
	release func(S) error
	eager   bool
}

// NewUsing creates a resource-scoped source.
func NewUsing[S, T any](acquire func() (S, error), derive func(S) (Publisher[T], error), release func(S) error) *Using[S, T] {
	return &Using[S, T]{
		name:    "using",
		acquire: acquire,
		derive:  derive,
		release: release,
		eager:   true,
	}
}

// Eager selects whether the resource is released before (true) or after
// (false) the terminal signal is forwarded.
func (u *Using[S, T]) Eager(eager bool) *Using[S, T] {
	u.eager = eager
	return u
}

// WithName sets a custom name for this operator.
func (u *Using[S, T]) WithName(name string) *Using[S, T] {
	u.name = name
	return u
}

// Subscribe implements Publisher.
func (u *Using[S, T]) Subscribe(s Subscriber[T]) {
	resource, err := call(u.acquire)
	if err != nil {
		subscribeError(s, wrapCallback[any](nil, err, u.name))
		return
	}

	p, err := call(func() (Publisher[T], error) {
		return u.derive(resource)
	})
	if err == nil && p == nil {
		err = ErrNilSource
	}
	if err != nil {
		err = wrapCallback(resource, err, u.name)
		if cerr := u.cleanup(resource); cerr != nil {
			err = Suppress(cerr, err)
		}
		subscribeError(s, err)
		return
	}

	p.Subscribe(&usingSubscriber[S, T]{
		actual:   s,
		op:       u,
		resource: resource,
	})
}

func (u *Using[S, T]) Name() string {
	return u.name
}

// cleanup releases resource, returning an attributed error on failure.
func (u *Using[S, T]) cleanup(resource S) error {
	err := callErr(func() error {
		return u.release(resource)
	})
	if err == nil {
		return nil
	}
	CleanupFailures.WithLabelValues(u.name).Inc()
	return wrapCallback(resource, err, u.name)
}

type usingSubscriber[S, T any] struct {
	actual   Subscriber[T]
	op       *Using[S, T]
	resource S
	upstream Subscription

	// released guards the single release of resource.
	released atomic.Bool
	done     bool
}

// releaseOnce releases the resource unless another path already did.
func (u *usingSubscriber[S, T]) releaseOnce() error {
	if !u.released.CompareAndSwap(false, true) {
		return nil
	}
	return u.op.cleanup(u.resource)
}

func (u *usingSubscriber[S, T]) releaseDropping() {
	if err := u.releaseOnce(); err != nil {
		OnErrorDropped(err)
	}
}

func (u *usingSubscriber[S, T]) OnSubscribe(s Subscription) {
	if !validateSubscription(u.upstream, s) {
		return
	}
	u.upstream = s
	u.actual.OnSubscribe(u)
}

func (u *usingSubscriber[S, T]) OnNext(v T) {
	if u.done {
		OnNextDropped(v)
		return
	}
	u.actual.OnNext(v)
}

func (u *usingSubscriber[S, T]) OnError(err error) {
	if u.done {
		OnErrorDropped(err)
		return
	}
	u.done = true

	if !u.op.eager {
		u.actual.OnError(err)
		u.releaseDropping()
		return
	}
	if cerr := u.releaseOnce(); cerr != nil {
		err = Suppress(err, cerr)
	}
	u.actual.OnError(err)
}

func (u *usingSubscriber[S, T]) OnComplete() {
	if u.done {
		return
	}
	u.done = true

	if !u.op.eager {
		u.actual.OnComplete()
		u.releaseDropping()
		return
	}
	if cerr := u.releaseOnce(); cerr != nil {
		u.actual.OnError(cerr)
		return
	}
	u.actual.OnComplete()
}

func (u *usingSubscriber[S, T]) Request(n int64) {
	u.upstream.Request(n)
}

func (u *usingSubscriber[S, T]) Cancel() {
	u.upstream.Cancel()
	u.releaseDropping()
}
