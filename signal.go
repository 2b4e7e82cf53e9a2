package flowz

import "fmt"

// SignalKind identifies which Subscriber callback a Signal represents.
type SignalKind uint8

// Signal kinds.
const (
	KindNext SignalKind = iota
	KindError
	KindComplete
)

func (k SignalKind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	default:
		return fmt.Sprintf("SignalKind(%d)", uint8(k))
	}
}

// Signal is a materialized Subscriber callback: an item, an error or a
// completion. It lets signals travel through channels and buffers.
type Signal[T any] struct {
	value T
	err   error
	kind  SignalKind
}

// Next returns a Signal carrying v.
func Next[T any](v T) Signal[T] {
	return Signal[T]{value: v, kind: KindNext}
}

// Error returns a terminal Signal carrying err.
func Error[T any](err error) Signal[T] {
	return Signal[T]{err: err, kind: KindError}
}

// Complete returns a terminal completion Signal.
func Complete[T any]() Signal[T] {
	return Signal[T]{kind: KindComplete}
}

// Kind returns the signal kind.
func (s Signal[T]) Kind() SignalKind {
	return s.kind
}

// IsNext reports whether the signal carries an item.
func (s Signal[T]) IsNext() bool {
	return s.kind == KindNext
}

// IsTerminal reports whether the signal is an error or a completion.
func (s Signal[T]) IsTerminal() bool {
	return s.kind != KindNext
}

// Value returns the item of a next signal.
// Panics if called on a terminal signal - check IsNext first.
func (s Signal[T]) Value() T {
	if s.kind != KindNext {
		panic("called Value() on a " + s.kind.String() + " signal")
	}
	return s.value
}

// ValueOr returns the item of a next signal, otherwise the fallback.
func (s Signal[T]) ValueOr(fallback T) T {
	if s.kind != KindNext {
		return fallback
	}
	return s.value
}

// Err returns the error of an error signal and nil otherwise.
func (s Signal[T]) Err() error {
	return s.err
}

// Deliver replays the signal onto sub.
func (s Signal[T]) Deliver(sub Subscriber[T]) {
	switch s.kind {
	case KindNext:
		sub.OnNext(s.value)
	case KindError:
		sub.OnError(s.err)
	case KindComplete:
		sub.OnComplete()
	}
}

// String returns a human-readable representation of the signal.
func (s Signal[T]) String() string {
	switch s.kind {
	case KindNext:
		return fmt.Sprintf("Next(%v)", s.value)
	case KindError:
		return fmt.Sprintf("Error(%v)", s.err)
	default:
		return "Complete"
	}
}
