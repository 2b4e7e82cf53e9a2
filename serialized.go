package flowz

import "sync"

// serializedSubscriber enforces the single-writer rule for a downstream fed
// from several goroutines. Signals that arrive while another goroutine is
// emitting are queued and replayed by that goroutine in arrival order.
type serializedSubscriber[T any] struct {
	actual Subscriber[T]

	mu       sync.Mutex
	emitting bool
	done     bool
	missed   []Signal[T]
}

func newSerializedSubscriber[T any](actual Subscriber[T]) *serializedSubscriber[T] {
	return &serializedSubscriber[T]{actual: actual}
}

func (s *serializedSubscriber[T]) OnSubscribe(sub Subscription) {
	s.actual.OnSubscribe(sub)
}

func (s *serializedSubscriber[T]) OnNext(v T) {
	s.emit(Next(v))
}

func (s *serializedSubscriber[T]) OnError(err error) {
	s.emit(Error[T](err))
}

func (s *serializedSubscriber[T]) OnComplete() {
	s.emit(Complete[T]())
}

func (s *serializedSubscriber[T]) emit(sig Signal[T]) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		s.dropped(sig)
		return
	}
	if sig.IsTerminal() {
		s.done = true
	}
	if s.emitting {
		s.missed = append(s.missed, sig)
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()

	sig.Deliver(s.actual)

	for {
		s.mu.Lock()
		if len(s.missed) == 0 {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		batch := s.missed
		s.missed = nil
		s.mu.Unlock()

		for _, m := range batch {
			m.Deliver(s.actual)
		}
	}
}

func (*serializedSubscriber[T]) dropped(sig Signal[T]) {
	switch sig.Kind() {
	case KindNext:
		OnNextDropped(sig.Value())
	case KindError:
		OnErrorDropped(sig.Err())
	}
}
