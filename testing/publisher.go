package testing

import (
	"sync"

	"github.com/zoobzio/flowz"
)

// Publisher is a hot source driven by the test. It accepts any number of
// subscribers and broadcasts every signal to the ones that have neither
// cancelled nor been terminated. It records demand but does not enforce it,
// so tests can also provoke protocol violations.
type Publisher[T any] struct {
	mu   sync.Mutex
	subs []*publisherSubscription[T]
}

// NewPublisher returns a Publisher with no subscribers.
func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{}
}

// Subscribe implements flowz.Publisher.
func (p *Publisher[T]) Subscribe(s flowz.Subscriber[T]) {
	ps := &publisherSubscription[T]{actual: s}
	p.mu.Lock()
	p.subs = append(p.subs, ps)
	p.mu.Unlock()
	s.OnSubscribe(ps)
}

func (p *Publisher[T]) active() []*publisherSubscription[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*publisherSubscription[T]
	for _, s := range p.subs {
		if s.isActive() {
			out = append(out, s)
		}
	}
	return out
}

// Next emits v to every active subscriber.
func (p *Publisher[T]) Next(values ...T) {
	for _, v := range values {
		for _, s := range p.active() {
			s.actual.OnNext(v)
		}
	}
}

// Error terminates every active subscriber with err.
func (p *Publisher[T]) Error(err error) {
	for _, s := range p.active() {
		s.terminate()
		s.actual.OnError(err)
	}
}

// Complete completes every active subscriber.
func (p *Publisher[T]) Complete() {
	for _, s := range p.active() {
		s.terminate()
		s.actual.OnComplete()
	}
}

// SubscriberCount returns how many subscriptions were made.
func (p *Publisher[T]) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// HasSubscribers reports whether any subscription is still active.
func (p *Publisher[T]) HasSubscribers() bool {
	return len(p.active()) > 0
}

// Requested returns the demand recorded by each subscription, in
// subscription order. Unbounded requests saturate.
func (p *Publisher[T]) Requested() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, len(p.subs))
	for i, s := range p.subs {
		out[i] = s.requested()
	}
	return out
}

// Cancelled reports whether at least one subscription was cancelled and
// every subscription the publisher did not terminate itself was cancelled.
func (p *Publisher[T]) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancelled := false
	for _, s := range p.subs {
		s.mu.Lock()
		c, term := s.cancelled, s.terminated
		s.mu.Unlock()
		if c {
			cancelled = true
		} else if !term {
			return false
		}
	}
	return cancelled
}

type publisherSubscription[T any] struct {
	actual flowz.Subscriber[T]

	mu         sync.Mutex
	demand     int64
	cancelled  bool
	terminated bool
}

func (s *publisherSubscription[T]) Request(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.demand = flowz.AddCap(s.demand, n)
	}
}

func (s *publisherSubscription[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *publisherSubscription[T]) requested() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demand
}

func (s *publisherSubscription[T]) terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = true
}

func (s *publisherSubscription[T]) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.cancelled && !s.terminated
}
