package flowz

// Mapper transforms each item of its source from one type to another.
// Mapping failures terminate the sequence with a StreamError carrying the
// offending item, and cancel the source.
//
// Mapper supports queue fusion with a fuseable source, applying the mapping
// function while the consumer polls. A fused Peek maps the head of the queue
// and the Poll that follows maps it again, so with fusion the function may
// run more than once per item. Functions with side effects should not be
// combined with consumers that peek.
type Mapper[In, Out any] struct {
	name   string
	source Publisher[In]
	fn     func(In) (Out, error)
}

// NewMapper creates an operator transforming items with fn.
//
// When to use:
//   - Type conversions between data representations
//   - Extracting fields or computing derived values
//
// Example:
//
//	lengths := flowz.NewMapper(words, func(w string) (int, error) {
//		return len(w), nil
//	})
func NewMapper[In, Out any](source Publisher[In], fn func(In) (Out, error)) *Mapper[In, Out] {
	return &Mapper[In, Out]{
		name:   "mapper",
		source: source,
		fn:     fn,
	}
}

// WithName sets a custom name for this operator.
func (m *Mapper[In, Out]) WithName(name string) *Mapper[In, Out] {
	m.name = name
	return m
}

// Subscribe implements Publisher.
func (m *Mapper[In, Out]) Subscribe(s Subscriber[Out]) {
	m.source.Subscribe(&mapSubscriber[In, Out]{
		passThrough: passThrough[In, Out]{actual: s},
		op:          m,
	})
}

func (m *Mapper[In, Out]) Name() string {
	return m.name
}

type mapSubscriber[In, Out any] struct {
	passThrough[In, Out]
	op *Mapper[In, Out]
}

func (m *mapSubscriber[In, Out]) OnSubscribe(s Subscription) {
	m.subscribed(s, m)
}

func (m *mapSubscriber[In, Out]) OnNext(v In) {
	if m.signalAvailable() {
		return
	}
	if m.done {
		OnNextDropped(v)
		return
	}
	out, err := m.apply(v)
	if err != nil {
		m.fail(err)
		return
	}
	m.actual.OnNext(out)
}

func (m *mapSubscriber[In, Out]) apply(v In) (Out, error) {
	out, err := call(func() (Out, error) {
		return m.op.fn(v)
	})
	if err != nil {
		return out, wrapCallback(v, err, m.op.name)
	}
	return out, nil
}

func (m *mapSubscriber[In, Out]) Poll() (Out, bool, error) {
	var zero Out
	v, ok, err := m.qs.Poll()
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := m.apply(v)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (m *mapSubscriber[In, Out]) Peek() (Out, bool, error) {
	var zero Out
	v, ok, err := m.qs.Peek()
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := m.apply(v)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}
