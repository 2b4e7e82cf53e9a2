package flowz

// Any emits true as soon as one item of its source satisfies the predicate,
// cancelling the source, or false when the source completes without a match.
type Any[T any] struct {
	name      string
	source    Publisher[T]
	predicate func(T) bool
}

// NewAny creates an operator testing whether any item satisfies predicate.
// A panicking predicate fails the sequence with a StreamError.
//
// Example:
//
//	hasFailure := flowz.NewAny(results, func(r Result) bool {
//		return r.Failed
//	})
func NewAny[T any](source Publisher[T], predicate func(T) bool) *Any[T] {
	return &Any[T]{
		name:      "any",
		source:    source,
		predicate: predicate,
	}
}

// WithName sets a custom name for this operator.
func (a *Any[T]) WithName(name string) *Any[T] {
	a.name = name
	return a
}

// Subscribe implements Publisher.
func (a *Any[T]) Subscribe(s Subscriber[bool]) {
	a.source.Subscribe(&anySubscriber[T]{
		scalarBase: scalarBase[bool]{actual: s},
		op:         a,
	})
}

func (a *Any[T]) Name() string {
	return a.name
}

type anySubscriber[T any] struct {
	scalarBase[bool]
	op *Any[T]
}

func (a *anySubscriber[T]) OnSubscribe(s Subscription) {
	a.subscribed(s)
}

func (a *anySubscriber[T]) OnNext(v T) {
	if a.dropNext(v) {
		return
	}
	matched, err := call(func() (bool, error) {
		return a.op.predicate(v), nil
	})
	if err != nil {
		a.abort(wrapCallback(v, err, a.op.name))
		return
	}
	if matched {
		a.done = true
		a.upstream.cancel()
		a.complete(true)
	}
}

func (a *anySubscriber[T]) OnError(err error) {
	a.upstreamError(err)
}

func (a *anySubscriber[T]) OnComplete() {
	if a.upstreamComplete() {
		a.complete(false)
	}
}
