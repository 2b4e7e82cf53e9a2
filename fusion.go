package flowz

import "strings"

// FusionMode is the bit set negotiated through RequestFusion.
type FusionMode uint8

// Fusion modes.
const (
	// FusionNone means values are pushed through OnNext.
	FusionNone FusionMode = 0

	// FusionSync means the consumer pulls with Poll, which never blocks and
	// only returns values that already exist. A Poll reporting no value
	// means the sequence completed.
	FusionSync FusionMode = 1

	// FusionAsync means the producer signals availability with OnNext and
	// the consumer drains with Poll. A Poll reporting no value only means
	// the queue is currently empty.
	FusionAsync FusionMode = 2

	// FusionAny requests either mode.
	FusionAny = FusionSync | FusionAsync

	// FusionThreadBarrier marks a consumer that may Poll from a different
	// goroutine than the producer. Stages running user callbacks refuse it.
	FusionThreadBarrier FusionMode = 4
)

func (m FusionMode) String() string {
	if m == FusionNone {
		return "none"
	}
	var parts []string
	if m&FusionSync != 0 {
		parts = append(parts, "sync")
	}
	if m&FusionAsync != 0 {
		parts = append(parts, "async")
	}
	if m&FusionThreadBarrier != 0 {
		parts = append(parts, "barrier")
	}
	return strings.Join(parts, "|")
}

// QueueSubscription is a Subscription that can also expose its values as a
// pollable queue. RequestFusion must be called before the first Request; the
// returned mode is fixed for the rest of the subscription.
//
// Poll and Peek return ok == false when no value is available. A non-nil
// error from Poll terminates the sequence with that error.
type QueueSubscription[T any] interface {
	Subscription
	RequestFusion(mode FusionMode) FusionMode
	Poll() (v T, ok bool, err error)
	Peek() (v T, ok bool, err error)
	Size() int
	IsEmpty() bool
	Clear()
}

// asQueueSubscription returns s as a QueueSubscription when it supports fusion.
func asQueueSubscription[T any](s Subscription) (QueueSubscription[T], bool) {
	qs, ok := s.(QueueSubscription[T])
	return qs, ok
}

// passThroughFusion negotiates mode with an upstream queue for a stage that
// runs a callback per value. Such a stage cannot be polled across a thread
// barrier.
func passThroughFusion[T any](upstream QueueSubscription[T], mode FusionMode) FusionMode {
	if upstream == nil || mode&FusionThreadBarrier != 0 {
		return FusionNone
	}
	return upstream.RequestFusion(mode)
}
