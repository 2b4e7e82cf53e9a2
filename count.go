package flowz

// Count emits the number of items its source produced, once the source
// completes.
type Count[T any] struct {
	name   string
	source Publisher[T]
}

// NewCount creates an operator that counts the items of source.
//
// Example:
//
//	n, err := flowz.First(ctx, flowz.NewCount(events))
func NewCount[T any](source Publisher[T]) *Count[T] {
	return &Count[T]{
		name:   "count",
		source: source,
	}
}

// WithName sets a custom name for this operator.
func (c *Count[T]) WithName(name string) *Count[T] {
	c.name = name
	return c
}

// Subscribe implements Publisher.
func (c *Count[T]) Subscribe(s Subscriber[int64]) {
	c.source.Subscribe(&countSubscriber[T]{scalarBase: scalarBase[int64]{actual: s}})
}

func (c *Count[T]) Name() string {
	return c.name
}

type countSubscriber[T any] struct {
	scalarBase[int64]
	counter int64
}

func (c *countSubscriber[T]) OnSubscribe(s Subscription) {
	c.subscribed(s)
}

func (c *countSubscriber[T]) OnNext(v T) {
	if c.dropNext(v) {
		return
	}
	c.counter++
}

func (c *countSubscriber[T]) OnError(err error) {
	c.upstreamError(err)
}

func (c *countSubscriber[T]) OnComplete() {
	if c.upstreamComplete() {
		c.complete(c.counter)
	}
}
