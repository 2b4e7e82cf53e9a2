package flowz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/flowz"
	flowztest "github.com/zoobzio/flowz/testing"
)

func TestTap_ObservesEveryItem(t *testing.T) {
	var seen []int
	tap := flowz.NewTap[int](flowz.Range(1, 3), func(v int) {
		seen = append(seen, v)
	})

	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	tap.Subscribe(sub)

	sub.AssertValues(t, 1, 2, 3).AssertComplete(t)
	assert.Equal(t, []int{1, 2, 3}, seen)

	last, ok := tap.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last)
}

func TestTap_NilFunction(t *testing.T) {
	tap := flowz.NewTap[string](flowz.Just("a", "b"), nil)
	_, ok := tap.Last()
	assert.False(t, ok)

	sub := flowztest.NewSubscriber[string](flowz.Unbounded)
	tap.Subscribe(sub)

	sub.AssertValues(t, "a", "b").AssertComplete(t)
	last, _ := tap.Last()
	assert.Equal(t, "b", last)
}

func TestTap_SideEffectPanic(t *testing.T) {
	src := flowztest.NewPublisher[int]()
	tap := flowz.NewTap[int](src, func(v int) {
		if v == 2 {
			panic("side effect failed")
		}
	})

	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	tap.Subscribe(sub)
	src.Next(1, 2, 3)

	sub.AssertValues(t, 1)
	var se *flowz.StreamError[int]
	require.ErrorAs(t, sub.Err(), &se)
	assert.Equal(t, "tap", se.Operator)
	assert.True(t, src.Cancelled())
}

func TestTap_WithName(t *testing.T) {
	tap := flowz.NewTap[int](flowz.Range(0, 1), nil)
	assert.Equal(t, "tap", tap.Name())
	assert.Equal(t, "audit", tap.WithName("audit").Name())
}
