// Package queue provides the bounded single-producer single-consumer buffer
// used by window and fusion stages.
package queue

import (
	"code.hybscloud.com/lfq"
	"go.uber.org/atomic"
)

const minRingCapacity = 2

// SPSC is a bounded lock-free queue with a consumer-side peek slot.
//
// Offer must only be called by one producer at a time, and Poll, Peek and
// Clear by one consumer at a time. Len and IsEmpty are safe from anywhere.
type SPSC[T any] struct {
	q     *lfq.SPSC[T]
	limit int64
	size  atomic.Int64

	// peeked holds a value removed from q by Peek but not yet consumed.
	peeked    T
	hasPeeked bool
}

// NewSPSC returns a queue holding at most capacity items. Capacity values
// below one are raised to one.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 1 {
		capacity = 1
	}
	// lfq needs room for at least two slots; limit keeps the exact bound.
	return &SPSC[T]{
		q:     lfq.NewSPSC[T](max(capacity, minRingCapacity)),
		limit: int64(capacity),
	}
}

// Offer appends v and reports whether there was room for it.
func (s *SPSC[T]) Offer(v T) bool {
	if s.size.Inc() > s.limit {
		s.size.Dec()
		return false
	}
	if err := s.q.Enqueue(&v); err != nil {
		s.size.Dec()
		return false
	}
	return true
}

// Poll removes and returns the head of the queue.
func (s *SPSC[T]) Poll() (T, bool) {
	if s.hasPeeked {
		v := s.peeked
		var zero T
		s.peeked, s.hasPeeked = zero, false
		s.size.Dec()
		return v, true
	}
	v, err := s.q.Dequeue()
	if err != nil {
		var zero T
		return zero, false
	}
	s.size.Dec()
	return v, true
}

// Peek returns the head of the queue without consuming it.
func (s *SPSC[T]) Peek() (T, bool) {
	if s.hasPeeked {
		return s.peeked, true
	}
	v, err := s.q.Dequeue()
	if err != nil {
		var zero T
		return zero, false
	}
	s.peeked, s.hasPeeked = v, true
	return v, true
}

// Len returns the number of buffered items.
func (s *SPSC[T]) Len() int {
	n := s.size.Load()
	if n < 0 {
		return 0
	}
	if n > s.limit {
		return int(s.limit)
	}
	return int(n)
}

// IsEmpty reports whether no items are buffered.
func (s *SPSC[T]) IsEmpty() bool {
	return s.Len() == 0
}

// Cap returns the maximum number of buffered items.
func (s *SPSC[T]) Cap() int {
	return int(s.limit)
}

// Clear discards every buffered item.
func (s *SPSC[T]) Clear() {
	for {
		if _, ok := s.Poll(); !ok {
			return
		}
	}
}
