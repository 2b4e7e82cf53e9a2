package flowz

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// DefaultPrefetch is the demand ToChannel keeps outstanding when no
// positive prefetch is given.
const DefaultPrefetch = 256

// FromChannel creates a source that forwards the values received from ch.
// Each subscription starts a goroutine that reads from ch only while there
// is outstanding demand. The source completes when ch is closed and fails
// with ctx.Err() when ctx is done. Cancelling the subscription stops the
// goroutine but leaves ch open.
func FromChannel[T any](ctx context.Context, ch <-chan T) Publisher[T] {
	return PublisherFunc[T](func(s Subscriber[T]) {
		cs := &channelSubscription[T]{
			actual: s,
			ch:     ch,
			wake:   make(chan struct{}, 1),
			stop:   make(chan struct{}),
		}
		s.OnSubscribe(cs)
		go cs.run(ctx)
	})
}

type channelSubscription[T any] struct {
	actual Subscriber[T]
	ch     <-chan T

	requested  Demand
	badRequest atomic.Error
	wake       chan struct{}
	stop       chan struct{}
	stopOnce   sync.Once
}

func (c *channelSubscription[T]) Request(n int64) {
	if err := validateRequest(n); err != nil {
		c.badRequest.Store(err)
	} else {
		c.requested.Add(n)
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *channelSubscription[T]) Cancel() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *channelSubscription[T]) run(ctx context.Context) {
	for {
		if err := c.badRequest.Load(); err != nil {
			c.Cancel()
			c.actual.OnError(err)
			return
		}
		if c.requested.Get() == 0 {
			select {
			case <-c.wake:
				continue
			case <-c.stop:
				return
			case <-ctx.Done():
				c.actual.OnError(ctx.Err())
				return
			}
		}

		select {
		case v, ok := <-c.ch:
			if !ok {
				c.actual.OnComplete()
				return
			}
			select {
			case <-c.stop:
				OnNextDropped(v)
				return
			default:
			}
			c.actual.OnNext(v)
			c.requested.Produced(1)
		case <-c.wake:
		case <-c.stop:
			return
		case <-ctx.Done():
			c.actual.OnError(ctx.Err())
			return
		}
	}
}

// ToChannel subscribes to p and exposes its signals on the returned
// channel, which is closed after the terminal signal. It keeps up to
// prefetch items requested and replenishes as items are handed over.
// Synchronously fuseable sources are drained by polling.
//
// When ctx is done the subscription is cancelled and the channel closed
// without a terminal signal.
func ToChannel[T any](ctx context.Context, p Publisher[T], prefetch int) <-chan Signal[T] {
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}
	out := make(chan Signal[T], prefetch)
	sub := &channelSubscriber[T]{ctx: ctx, out: out, prefetch: int64(prefetch)}
	sub.limit = sub.prefetch - sub.prefetch>>2
	go p.Subscribe(sub)
	return out
}

type channelSubscriber[T any] struct {
	ctx      context.Context
	out      chan Signal[T]
	prefetch int64
	limit    int64
	consumed int64

	upstream upstreamRef
	closed   bool
}

func (c *channelSubscriber[T]) OnSubscribe(s Subscription) {
	if !c.upstream.set(s) {
		return
	}
	if qs, ok := asQueueSubscription[T](s); ok && qs.RequestFusion(FusionSync) == FusionSync {
		c.drainSync(qs)
		return
	}
	s.Request(c.prefetch)
}

func (c *channelSubscriber[T]) drainSync(qs QueueSubscription[T]) {
	for {
		v, ok, err := qs.Poll()
		if err != nil {
			c.terminate(Error[T](err))
			return
		}
		if !ok {
			c.terminate(Complete[T]())
			return
		}
		if !c.send(Next(v)) {
			return
		}
	}
}

func (c *channelSubscriber[T]) OnNext(v T) {
	if c.closed {
		OnNextDropped(v)
		return
	}
	if !c.send(Next(v)) {
		return
	}
	c.consumed++
	if c.consumed == c.limit {
		c.consumed = 0
		c.upstream.request(c.limit)
	}
}

func (c *channelSubscriber[T]) OnError(err error) {
	if c.closed {
		OnErrorDropped(err)
		return
	}
	c.terminate(Error[T](err))
}

func (c *channelSubscriber[T]) OnComplete() {
	if c.closed {
		return
	}
	c.terminate(Complete[T]())
}

// send hands sig to the reader. It cancels upstream and closes the channel
// when ctx is done first.
func (c *channelSubscriber[T]) send(sig Signal[T]) bool {
	select {
	case c.out <- sig:
		return true
	case <-c.ctx.Done():
		c.upstream.cancel()
		c.closed = true
		close(c.out)
		return false
	}
}

func (c *channelSubscriber[T]) terminate(sig Signal[T]) {
	if c.send(sig) {
		c.closed = true
		close(c.out)
	}
}

// ToSlice subscribes to p and blocks until it terminates, returning every
// item received. An error signal is returned together with the items
// received before it. If ctx is done first, ctx.Err() is returned.
func ToSlice[T any](ctx context.Context, p Publisher[T]) ([]T, error) {
	var items []T
	for sig := range ToChannel(ctx, p, DefaultPrefetch) {
		switch sig.Kind() {
		case KindNext:
			items = append(items, sig.Value())
		case KindError:
			return items, sig.Err()
		case KindComplete:
			return items, nil
		}
	}
	return items, ctx.Err()
}

// First blocks until p emits its first item, then cancels the subscription.
// It returns ErrNoSuchElement when p completes empty.
func First[T any](ctx context.Context, p Publisher[T]) (T, error) {
	var zero T
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for sig := range ToChannel(ctx, NewTake(p, 1), 1) {
		switch sig.Kind() {
		case KindNext:
			return sig.Value(), nil
		case KindError:
			return zero, sig.Err()
		case KindComplete:
			return zero, ErrNoSuchElement
		}
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, ErrNoSuchElement
}
