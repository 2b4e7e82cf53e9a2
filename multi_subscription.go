package flowz

import (
	"fmt"

	"go.uber.org/atomic"
)

// multiSubscription is a Subscription arbiter that lets an operator switch
// between successive upstream subscriptions while the downstream keeps a
// single handle. Requested and produced amounts are tracked across
// switches, so a new upstream is asked for exactly the demand that is
// still outstanding.
//
// Calls are serialized with a work-in-progress counter. Whoever moves it
// from zero applies their change directly; everyone else records it in the
// missed fields, which the owner folds in before giving up ownership.
type multiSubscription struct {
	// Owned by whoever holds wip.
	subscription Subscription
	requested    int64

	unbounded          atomic.Bool
	missedSubscription atomic.Pointer[subscriptionBox]
	missedRequested    atomic.Int64
	missedProduced     atomic.Int64
	wip                atomic.Int32
	cancelled          atomic.Bool
}

// set switches to s. The previous subscription is not cancelled; callers
// switch only after it terminated.
func (m *multiSubscription) set(s Subscription) {
	if m.cancelled.Load() {
		s.Cancel()
		return
	}
	if m.wip.Load() == 0 && m.wip.CompareAndSwap(0, 1) {
		m.subscription = s
		r := m.requested
		if m.wip.Dec() != 0 {
			m.drainLoop()
		}
		if r != 0 {
			s.Request(r)
		}
		return
	}
	m.missedSubscription.Store(&subscriptionBox{s: s})
	if m.wip.Inc() != 1 {
		return
	}
	m.drainLoop()
}

// Request adds n to the outstanding demand and forwards it to the current
// subscription. n must already be validated.
func (m *multiSubscription) Request(n int64) {
	if m.unbounded.Load() {
		return
	}
	if m.wip.Load() == 0 && m.wip.CompareAndSwap(0, 1) {
		r := m.requested
		if r != Unbounded {
			r = AddCap(r, n)
			m.requested = r
			if r == Unbounded {
				m.unbounded.Store(true)
			}
		}
		a := m.subscription
		if m.wip.Dec() != 0 {
			m.drainLoop()
		}
		if a != nil {
			a.Request(n)
		}
		return
	}
	for {
		r := m.missedRequested.Load()
		if m.missedRequested.CompareAndSwap(r, AddCap(r, n)) {
			break
		}
	}
	if m.wip.Inc() != 1 {
		return
	}
	m.drainLoop()
}

// produced records n items delivered by the current subscription.
func (m *multiSubscription) produced(n int64) {
	if m.unbounded.Load() {
		return
	}
	if m.wip.Load() == 0 && m.wip.CompareAndSwap(0, 1) {
		r := m.requested
		if r != Unbounded {
			m.requested = m.subtract(r, n)
		} else {
			m.unbounded.Store(true)
		}
		if m.wip.Dec() != 0 {
			m.drainLoop()
		}
		return
	}
	m.missedProduced.Add(n)
	if m.wip.Inc() != 1 {
		return
	}
	m.drainLoop()
}

// Cancel cancels the current subscription and any subscription set later.
func (m *multiSubscription) Cancel() {
	if !m.cancelled.CompareAndSwap(false, true) {
		return
	}
	if m.wip.Inc() != 1 {
		return
	}
	m.drainLoop()
}

func (m *multiSubscription) isCancelled() bool {
	return m.cancelled.Load()
}

func (m *multiSubscription) subtract(r, n int64) int64 {
	u := r - n
	if u < 0 {
		OnErrorDropped(fmt.Errorf("flowz: more produced than requested: %d", u))
		return 0
	}
	return u
}

func (m *multiSubscription) drainLoop() {
	missed := int32(1)

	var requestAmount int64
	var requestTarget Subscription

	for {
		var ms Subscription
		if box := m.missedSubscription.Swap(nil); box != nil {
			ms = box.s
		}
		mr := m.missedRequested.Swap(0)
		mp := m.missedProduced.Swap(0)
		a := m.subscription

		if m.cancelled.Load() {
			if a != nil {
				a.Cancel()
				m.subscription = nil
			}
			if ms != nil {
				ms.Cancel()
			}
		} else {
			r := m.requested
			if r != Unbounded {
				u := AddCap(r, mr)
				if u != Unbounded {
					r = m.subtract(u, mp)
				} else {
					r = u
				}
				m.requested = r
			}
			if r == Unbounded {
				m.unbounded.Store(true)
			}

			if ms != nil {
				m.subscription = ms
				if r != 0 {
					requestAmount = AddCap(requestAmount, r)
					requestTarget = ms
				}
			} else if mr != 0 && a != nil {
				requestAmount = AddCap(requestAmount, mr)
				requestTarget = a
			}
		}

		missed = m.wip.Sub(missed)
		if missed == 0 {
			if requestAmount != 0 {
				requestTarget.Request(requestAmount)
			}
			return
		}
	}
}
