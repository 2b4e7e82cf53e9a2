package flowz

import (
	"fmt"

	"go.uber.org/atomic"
)

// AddCap adds two non-negative demand amounts, saturating at Unbounded.
func AddCap(a, b int64) int64 {
	u := a + b
	if u < 0 {
		return Unbounded
	}
	return u
}

// MulCap multiplies two non-negative demand amounts, saturating at Unbounded.
func MulCap(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > Unbounded/b {
		return Unbounded
	}
	return a * b
}

// Demand is an atomically updated count of outstanding requested items.
// It saturates at Unbounded and never goes negative. The zero value has no
// outstanding demand.
type Demand struct {
	n atomic.Int64
}

// Add adds n to the outstanding demand and returns the previous value.
// Once the demand reaches Unbounded it stays there.
func (d *Demand) Add(n int64) int64 {
	for {
		r := d.n.Load()
		if r == Unbounded {
			return Unbounded
		}
		if d.n.CompareAndSwap(r, AddCap(r, n)) {
			return r
		}
	}
}

// Produced subtracts n delivered items and returns the remaining demand.
// Unbounded demand is never reduced. Producing more than was requested is a
// protocol violation; it is reported to the drop channel and the demand
// clamps at zero.
func (d *Demand) Produced(n int64) int64 {
	for {
		r := d.n.Load()
		if r == Unbounded {
			return Unbounded
		}
		u := r - n
		over := u < 0
		if over {
			u = 0
		}
		if d.n.CompareAndSwap(r, u) {
			if over {
				OnErrorDropped(fmt.Errorf("flowz: more produced than requested: %d", r-n))
			}
			return u
		}
	}
}

// Get returns the outstanding demand.
func (d *Demand) Get() int64 {
	return d.n.Load()
}

// IsUnbounded reports whether backpressure has been disabled.
func (d *Demand) IsUnbounded() bool {
	return d.n.Load() == Unbounded
}

// validateRequest returns ErrInvalidRequest for non-positive amounts.
func validateRequest(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRequest, n)
	}
	return nil
}
