package flowz_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/flowz"
	flowztest "github.com/zoobzio/flowz/testing"
)

func pipeline(src flowz.Publisher[int], observed *[]int) flowz.Publisher[int] {
	mapped := flowz.NewMapper(src, double)
	filtered := flowz.NewFilter[int](mapped, func(v int) bool { return v%3 != 0 })
	return flowz.NewTap[int](filtered, func(v int) { *observed = append(*observed, v) })
}

func TestFusion_SyncThroughOperators(t *testing.T) {
	var observed []int
	sub := flowztest.NewSubscriber[int](0).WithFusion(flowz.FusionSync)
	pipeline(flowz.Range(1, 6), &observed).Subscribe(sub)

	sub.AssertFusionMode(t, flowz.FusionSync).
		AssertValues(t, 2, 4, 8, 10).
		AssertComplete(t)
	assert.Equal(t, []int{2, 4, 8, 10}, observed, "the side effect runs once per polled item")
}

func TestFusion_FusedMatchesUnfused(t *testing.T) {
	inputs := [][]int{
		{},
		{3},
		{1, 2, 3, 4, 5, 6, 7, 8, 9},
		{6, 12, 18},
	}
	for _, in := range inputs {
		var fusedSide, plainSide []int

		fused := flowztest.NewSubscriber[int](0).WithFusion(flowz.FusionSync)
		pipeline(flowz.FromSlice(in), &fusedSide).Subscribe(fused)

		plain := flowztest.NewSubscriber[int](flowz.Unbounded)
		pipeline(flowz.FromSlice(in), &plainSide).Subscribe(plain)

		assert.Equal(t, flowztest.Trace(plain.Signals()), flowztest.Trace(fused.Signals()), "input %v", in)
		assert.Equal(t, plainSide, fusedSide, "input %v", in)
	}
}

func TestFusion_ThreadBarrierRefused(t *testing.T) {
	sub := flowztest.NewSubscriber[int](flowz.Unbounded).
		WithFusion(flowz.FusionSync | flowz.FusionThreadBarrier)
	flowz.NewMapper[int](flowz.Range(1, 3), double).Subscribe(sub)

	sub.AssertFusionMode(t, flowz.FusionNone).
		AssertValues(t, 2, 4, 6).
		AssertComplete(t)
}

func TestFusion_SourceAcceptsThreadBarrier(t *testing.T) {
	sub := flowztest.NewSubscriber[int](0).
		WithFusion(flowz.FusionSync | flowz.FusionThreadBarrier)
	flowz.Range(1, 2).Subscribe(sub)

	sub.AssertFusionMode(t, flowz.FusionSync).AssertValues(t, 1, 2).AssertComplete(t)
}

func TestFusion_SyncOnlySourceRefusesAsync(t *testing.T) {
	sub := flowztest.NewSubscriber[int](flowz.Unbounded).WithFusion(flowz.FusionAsync)
	flowz.NewMapper[int](flowz.Range(1, 2), double).Subscribe(sub)

	sub.AssertFusionMode(t, flowz.FusionNone).AssertValues(t, 2, 4).AssertComplete(t)
}

func TestFusion_NotOfferedByTake(t *testing.T) {
	sub := flowztest.NewSubscriber[int](flowz.Unbounded).WithFusion(flowz.FusionAny)
	flowz.NewTake[int](flowz.Range(1, 5), 2).Subscribe(sub)

	sub.AssertFusionMode(t, flowz.FusionNone).AssertValues(t, 1, 2).AssertComplete(t)
}

func TestFusion_PollError(t *testing.T) {
	boom := errors.New("boom")
	sub := flowztest.NewSubscriber[int](0).WithFusion(flowz.FusionSync)
	flowz.NewMapper(flowz.Just(1, 2, 3), func(v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	}).Subscribe(sub)

	sub.AssertFusionMode(t, flowz.FusionSync).AssertValues(t, 1).AssertError(t, boom)
}

// queueGrabber negotiates fusion and keeps the queue for the test to drive.
type queueGrabber[T any] struct {
	qs   flowz.QueueSubscription[T]
	mode flowz.FusionMode
}

func (g *queueGrabber[T]) OnSubscribe(s flowz.Subscription) {
	g.qs = s.(flowz.QueueSubscription[T])
	g.mode = g.qs.RequestFusion(flowz.FusionSync)
}
func (g *queueGrabber[T]) OnNext(T)      {}
func (g *queueGrabber[T]) OnError(error) {}
func (g *queueGrabber[T]) OnComplete()   {}

func TestFusion_PeekAppliesMapper(t *testing.T) {
	var calls int
	g := &queueGrabber[int]{}
	flowz.NewMapper(flowz.Just(1, 2), func(v int) (int, error) {
		calls++
		return v * 10, nil
	}).Subscribe(g)
	require.Equal(t, flowz.FusionSync, g.mode)

	v, ok, err := g.qs.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok, _ = g.qs.Poll()
	require.True(t, ok)
	assert.Equal(t, 10, v)
	// Peek and Poll each run the mapper on the same item.
	assert.Equal(t, 2, calls)

	assert.Equal(t, 1, g.qs.Size())
	assert.False(t, g.qs.IsEmpty())
	g.qs.Clear()
	assert.True(t, g.qs.IsEmpty())
	_, ok, _ = g.qs.Poll()
	assert.False(t, ok)
}

func TestFusion_FilterPeekSkipsRejected(t *testing.T) {
	g := &queueGrabber[int]{}
	flowz.NewFilter(flowz.Just(1, 3, 4, 5), isEven).Subscribe(g)

	v, ok, err := g.qs.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, v)

	v, _, _ = g.qs.Poll()
	assert.Equal(t, 4, v)
	_, ok, _ = g.qs.Poll()
	assert.False(t, ok, "5 is rejected and the source is exhausted")
}

func TestFusionMode_String(t *testing.T) {
	assert.Equal(t, "none", flowz.FusionNone.String())
	assert.Equal(t, "sync|async", flowz.FusionAny.String())
	assert.Equal(t, "sync|barrier", (flowz.FusionSync | flowz.FusionThreadBarrier).String())
}
