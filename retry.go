package flowz

import (
	"go.uber.org/atomic"
)

// Retry resubscribes to its source when the source fails with an error the
// predicate accepts. Items already delivered are not replayed by Retry
// itself; a cold source starts over on every subscription.
//
// Outstanding downstream demand carries over to each new subscription, so a
// downstream that requested 10 items and received 4 before the failure is
// owed 6 by the next attempt.
//
// Resubscription runs in a trampoline: a source that fails synchronously
// inside Subscribe does not grow the call stack, however many times it is
// retried.
//
// Key features:
//   - Predicate-driven error classification.
//   - Optional cap on the number of attempts.
//   - Constant stack depth under synchronous failure storms.
//
// Example:
//
//	resilient := flowz.NewRetry(fetch, func(err error) bool {
//		return errors.Is(err, ErrTransient)
//	}).MaxAttempts(5).WithName("fetch-retry")
type Retry[T any] struct { //nolint:govet // logical field grouping preferred over memory optimization
	source      Publisher[T]
	predicate   func(error) bool
	maxAttempts int
	name        string
}

// NewRetry creates an operator that retries source while predicate accepts
// its errors. A panicking predicate terminates the sequence with a
// StreamError whose Item is the source error; the source error is also
// attached as a suppressed cause.
//
// Default configuration:
//   - MaxAttempts: unlimited.
//   - Name: "retry".
func NewRetry[T any](source Publisher[T], predicate func(error) bool) *Retry[T] {
	return &Retry[T]{
		source:    source,
		predicate: predicate,
		name:      "retry",
	}
}

// MaxAttempts sets the maximum number of subscriptions, including the
// initial one, so MaxAttempts(3) means 1 initial + 2 retries. Values below
// one remove the limit.
func (r *Retry[T]) MaxAttempts(attempts int) *Retry[T] {
	if attempts < 1 {
		attempts = 0
	}
	r.maxAttempts = attempts
	return r
}

// WithName sets a custom name for this operator.
func (r *Retry[T]) WithName(name string) *Retry[T] {
	r.name = name
	return r
}

// Subscribe implements Publisher.
func (r *Retry[T]) Subscribe(s Subscriber[T]) {
	rs := &retrySubscriber[T]{actual: newSerializedSubscriber(s), op: r}
	s.OnSubscribe(rs)
	rs.resubscribe()
}

func (r *Retry[T]) Name() string {
	return r.name
}

type retrySubscriber[T any] struct {
	multiSubscription

	actual Subscriber[T]
	op     *Retry[T]

	wip        atomic.Int32
	terminated atomic.Bool

	// Owned by the active source subscription.
	emitted  int64
	attempts int
}

func (r *retrySubscriber[T]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		r.multiSubscription.Cancel()
		r.terminate(err)
		return
	}
	r.multiSubscription.Request(n)
}

func (r *retrySubscriber[T]) OnSubscribe(s Subscription) {
	r.set(s)
}

func (r *retrySubscriber[T]) OnNext(v T) {
	if r.terminated.Load() {
		OnNextDropped(v)
		return
	}
	r.emitted++
	r.actual.OnNext(v)
}

func (r *retrySubscriber[T]) OnError(err error) {
	if r.terminated.Load() {
		OnErrorDropped(err)
		return
	}
	if r.op.maxAttempts > 0 && r.attempts >= r.op.maxAttempts {
		r.terminate(err)
		return
	}

	accept, perr := call(func() (bool, error) {
		return r.op.predicate(err), nil
	})
	if perr != nil {
		r.terminate(Suppress(NewStreamError(err, perr, r.op.name), err))
		return
	}
	if !accept {
		r.terminate(err)
		return
	}

	Resubscriptions.WithLabelValues(r.op.name).Inc()
	Logger().Debugw("resubscribing after error",
		"operator", r.op.name,
		"attempt", r.attempts,
		"error", err)
	r.resubscribe()
}

func (r *retrySubscriber[T]) OnComplete() {
	if !r.terminated.CompareAndSwap(false, true) {
		return
	}
	r.actual.OnComplete()
}

func (r *retrySubscriber[T]) terminate(err error) {
	if !r.terminated.CompareAndSwap(false, true) {
		OnErrorDropped(err)
		return
	}
	r.actual.OnError(err)
}

// resubscribe subscribes to the source again. Only the goroutine that moves
// wip from zero subscribes; reentrant calls made while it is subscribing are
// counted and replayed by its loop.
func (r *retrySubscriber[T]) resubscribe() {
	if r.wip.Inc() != 1 {
		return
	}
	for {
		if r.isCancelled() {
			return
		}
		if c := r.emitted; c != 0 {
			r.emitted = 0
			r.produced(c)
		}
		r.attempts++
		r.op.source.Subscribe(r)

		if r.wip.Dec() == 0 {
			return
		}
	}
}
