package flowz

import (
	"errors"
	"testing"
)

func TestAddCap(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{1, 2, 3},
		{0, 0, 0},
		{Unbounded, 1, Unbounded},
		{Unbounded - 1, 5, Unbounded},
	}
	for _, tt := range tests {
		if got := AddCap(tt.a, tt.b); got != tt.want {
			t.Errorf("AddCap(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMulCap(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{3, 4, 12},
		{0, Unbounded, 0},
		{Unbounded, 2, Unbounded},
		{1 << 40, 1 << 40, Unbounded},
	}
	for _, tt := range tests {
		if got := MulCap(tt.a, tt.b); got != tt.want {
			t.Errorf("MulCap(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDemand(t *testing.T) {
	var d Demand
	if prev := d.Add(5); prev != 0 {
		t.Errorf("expected previous 0, got %d", prev)
	}
	if prev := d.Add(3); prev != 5 {
		t.Errorf("expected previous 5, got %d", prev)
	}
	if left := d.Produced(6); left != 2 {
		t.Errorf("expected 2 left, got %d", left)
	}
	if d.IsUnbounded() {
		t.Error("demand should be bounded")
	}

	d.Add(Unbounded)
	if !d.IsUnbounded() {
		t.Error("demand should saturate at Unbounded")
	}
	if left := d.Produced(100); left != Unbounded {
		t.Errorf("unbounded demand must not decrease, got %d", left)
	}
}

func TestDemandOverProduction(t *testing.T) {
	var dropped []error
	restore := SetDropHooks(DropHooks{OnErrorDropped: func(err error) { dropped = append(dropped, err) }})
	defer restore()

	var d Demand
	d.Add(1)
	if left := d.Produced(3); left != 0 {
		t.Errorf("expected demand to clamp at 0, got %d", left)
	}
	if len(dropped) != 1 {
		t.Fatalf("expected one dropped error, got %v", dropped)
	}
}

func TestValidateRequest(t *testing.T) {
	if err := validateRequest(1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, n := range []int64{0, -1} {
		if err := validateRequest(n); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("validateRequest(%d) = %v, want ErrInvalidRequest", n, err)
		}
	}
}
