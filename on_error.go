package flowz

import "errors"

// OnError observes the terminal error of its source when it matches the
// error type E, then forwards the error unchanged. The observer receives the
// item attached to the error when the failure came from a user callback
// (see StreamError), or nil.
//
// Items and completion pass through untouched.
type OnError[T any, E error] struct {
	name     string
	source   Publisher[T]
	observer func(value any, err E)
}

// NewOnError creates an operator invoking observer for errors assignable to E.
// If observer panics, the panic is attached to the forwarded error as a
// suppressed cause.
//
// Example:
//
//	logged := flowz.NewOnError(parsed, func(v any, err *strconv.NumError) {
//		log.Printf("could not parse %v: %v", v, err)
//	})
func NewOnError[T any, E error](source Publisher[T], observer func(value any, err E)) *OnError[T, E] {
	return &OnError[T, E]{
		name:     "on-error",
		source:   source,
		observer: observer,
	}
}

// WithName sets a custom name for this operator.
func (o *OnError[T, E]) WithName(name string) *OnError[T, E] {
	o.name = name
	return o
}

// Subscribe implements Publisher.
func (o *OnError[T, E]) Subscribe(s Subscriber[T]) {
	o.source.Subscribe(&onErrorSubscriber[T, E]{
		passThrough: passThrough[T, T]{actual: s},
		op:          o,
	})
}

func (o *OnError[T, E]) Name() string {
	return o.name
}

type onErrorSubscriber[T any, E error] struct {
	passThrough[T, T]
	op *OnError[T, E]
}

func (o *onErrorSubscriber[T, E]) OnSubscribe(s Subscription) {
	o.subscribed(s, o)
}

func (o *onErrorSubscriber[T, E]) OnNext(v T) {
	if o.done {
		OnNextDropped(v)
		return
	}
	o.actual.OnNext(v)
}

func (o *onErrorSubscriber[T, E]) OnError(err error) {
	if o.done {
		OnErrorDropped(err)
		return
	}
	var target E
	if errors.As(err, &target) {
		value, _ := ValueCause(err)
		if cbErr := callErr(func() error {
			o.op.observer(value, target)
			return nil
		}); cbErr != nil {
			err = Suppress(err, wrapCallback[any](value, cbErr, o.op.name))
		}
	}
	o.passThrough.OnError(err)
}
