package flowz

// Filter selectively passes items through a stream based on a predicate.
// Items for which the predicate returns false are discarded and replaced by
// a request for one more item, so downstream demand is honored exactly.
//
// The predicate should be pure: with queue fusion it runs on the polling
// side, and a fused Peek may evaluate it for an item before the Poll that
// consumes it.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type Filter[T any] struct {
	name      string
	source    Publisher[T]
	predicate func(T) bool
}

// NewFilter creates an operator that passes only items matching predicate.
// A panicking predicate fails the sequence with a StreamError.
//
// Example:
//
//	positive := flowz.NewFilter(numbers, func(n int) bool {
//		return n > 0
//	})
func NewFilter[T any](source Publisher[T], predicate func(T) bool) *Filter[T] {
	return &Filter[T]{
		name:      "filter",
		source:    source,
		predicate: predicate,
	}
}

// WithName sets a custom name for this operator.
func (f *Filter[T]) WithName(name string) *Filter[T] {
	f.name = name
	return f
}

// Subscribe implements Publisher.
func (f *Filter[T]) Subscribe(s Subscriber[T]) {
	f.source.Subscribe(&filterSubscriber[T]{
		passThrough: passThrough[T, T]{actual: s},
		op:          f,
	})
}

func (f *Filter[T]) Name() string {
	return f.name
}

type filterSubscriber[T any] struct {
	passThrough[T, T]
	op *Filter[T]
}

func (f *filterSubscriber[T]) OnSubscribe(s Subscription) {
	f.subscribed(s, f)
}

func (f *filterSubscriber[T]) OnNext(v T) {
	if f.signalAvailable() {
		return
	}
	if f.done {
		OnNextDropped(v)
		return
	}
	ok, err := f.test(v)
	if err != nil {
		f.fail(err)
		return
	}
	if ok {
		f.actual.OnNext(v)
		return
	}
	f.upstream.Request(1)
}

func (f *filterSubscriber[T]) test(v T) (bool, error) {
	ok, err := call(func() (bool, error) {
		return f.op.predicate(v), nil
	})
	if err != nil {
		return false, wrapCallback(v, err, f.op.name)
	}
	return ok, nil
}

func (f *filterSubscriber[T]) Poll() (T, bool, error) {
	var zero T
	var dropped int64
	defer func() {
		if dropped > 0 && f.mode == FusionAsync {
			f.upstream.Request(dropped)
		}
	}()
	for {
		v, ok, err := f.qs.Poll()
		if err != nil || !ok {
			return zero, false, err
		}
		match, err := f.test(v)
		if err != nil {
			return zero, false, err
		}
		if match {
			return v, true, nil
		}
		dropped++
	}
}

func (f *filterSubscriber[T]) Peek() (T, bool, error) {
	var zero T
	for {
		v, ok, err := f.qs.Peek()
		if err != nil || !ok {
			return zero, false, err
		}
		match, err := f.test(v)
		if err != nil {
			return zero, false, err
		}
		if match {
			return v, true, nil
		}
		_, _, _ = f.qs.Poll()
		if f.mode == FusionAsync {
			f.upstream.Request(1)
		}
	}
}
