package flowz

// Collect folds every item of its source into a container obtained from a
// supplier and emits the container when the source completes. R should be
// a reference type such as a map or a pointer, since the collector cannot
// replace the container.
type Collect[T, R any] struct {
	name      string
	source    Publisher[T]
	supplier  func() (R, error)
	collector func(R, T) error
}

// NewCollect creates an operator that collects items into the container
// returned by supplier, calling collector for each item. The supplier runs
// once per subscription. Supplier or collector failures fail the sequence
// and cancel the source.
//
// Example:
//
//	byKey := flowz.NewCollect(events,
//		func() (map[string]int, error) { return map[string]int{}, nil },
//		func(m map[string]int, e Event) error {
//			m[e.Key]++
//			return nil
//		},
//	)
func NewCollect[T, R any](source Publisher[T], supplier func() (R, error), collector func(R, T) error) *Collect[T, R] {
	return &Collect[T, R]{
		name:      "collect",
		source:    source,
		supplier:  supplier,
		collector: collector,
	}
}

// WithName sets a custom name for this operator.
func (c *Collect[T, R]) WithName(name string) *Collect[T, R] {
	c.name = name
	return c
}

// Subscribe implements Publisher.
func (c *Collect[T, R]) Subscribe(s Subscriber[R]) {
	container, err := call(c.supplier)
	if err != nil {
		var zero T
		subscribeError(s, wrapCallback(zero, err, c.name))
		return
	}
	c.source.Subscribe(&collectSubscriber[T, R]{
		scalarBase: scalarBase[R]{actual: s},
		op:         c,
		container:  container,
	})
}

func (c *Collect[T, R]) Name() string {
	return c.name
}

type collectSubscriber[T, R any] struct {
	scalarBase[R]
	op        *Collect[T, R]
	container R
}

func (c *collectSubscriber[T, R]) OnSubscribe(s Subscription) {
	c.subscribed(s)
}

func (c *collectSubscriber[T, R]) OnNext(v T) {
	if c.dropNext(v) {
		return
	}
	err := callErr(func() error {
		return c.op.collector(c.container, v)
	})
	if err != nil {
		c.abort(wrapCallback(v, err, c.op.name))
	}
}

func (c *collectSubscriber[T, R]) OnError(err error) {
	c.upstreamError(err)
}

func (c *collectSubscriber[T, R]) OnComplete() {
	if c.upstreamComplete() {
		c.complete(c.container)
	}
}
