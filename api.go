// Package flowz provides type-safe, backpressure-aware reactive stream
// primitives: a push-based protocol in which a Publisher emits items to a
// Subscriber only up to the amount the Subscriber has requested, with explicit
// completion, error and cancellation.
//
// The core abstractions are Publisher, Subscriber and Subscription. Operators
// sit between a source and a consumer and implement the same protocol on both
// sides while adding behavior. Adjacent stages may negotiate queue fusion
// (see QueueSubscription) to exchange values by polling instead of pushing.
//
// Basic usage:
//
//	source := flowz.Range(1, 10)
//
//	// Split into windows of three items.
//	windows := flowz.NewWindowCount(source, 3)
//
//	flowz.Subscribe[*flowz.Window[int]](windows,
//		func(w *flowz.Window[int]) {
//			values, _ := flowz.ToSlice(ctx, w)
//			fmt.Println(values)
//		},
//		func(err error) { log.Println(err) },
//		func() { fmt.Println("done") },
//	)
//
// The package provides operators for common reactive patterns:
//   - Scalar terminal reductions (count, any, element-at, collect)
//   - Pass-through transformations (map, filter, tap, take)
//   - Predicate-driven retry by resubscription
//   - Scoped resource lifetimes with eager or lazy cleanup
//   - Count, time and signal driven windowing
//   - Channel bridges for interop with goroutine pipelines
package flowz

import "math"

// Unbounded is the demand amount that permanently disables backpressure for
// a subscription.
const Unbounded int64 = math.MaxInt64

// Publisher is a provider of a possibly unbounded sequence of items,
// delivering them according to the demand received from its Subscribers.
// Each call to Subscribe starts an independent Subscription.
type Publisher[T any] interface {
	// Subscribe binds exactly one Subscriber to a new Subscription.
	// OnSubscribe is always called before any other signal.
	Subscribe(s Subscriber[T])
}

// Subscriber receives the signals of exactly one Subscription:
// OnSubscribe once, then zero or more OnNext, then at most one of
// OnError or OnComplete.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(v T)
	OnError(err error)
	OnComplete()
}

// Subscription is the control handle a Publisher gives a Subscriber.
// Request must be called with a positive amount; Cancel is idempotent.
type Subscription interface {
	Request(n int64)
	Cancel()
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc[T any] func(s Subscriber[T])

// Subscribe calls f(s).
func (f PublisherFunc[T]) Subscribe(s Subscriber[T]) {
	f(s)
}

// Named is implemented by every operator in this package.
type Named interface {
	Name() string
}
