package flowz_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/flowz"
	flowztest "github.com/zoobzio/flowz/testing"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

// flaky emits items and then fails with errTransient for the first
// failures subscriptions, and emits items and completes afterwards. It
// ignores demand, so subscribers must request without bound.
type flaky struct {
	items         []int
	failures      int
	subscriptions int
}

func (f *flaky) Subscribe(s flowz.Subscriber[int]) {
	f.subscriptions++
	s.OnSubscribe(nopSubscription{})
	for _, v := range f.items {
		s.OnNext(v)
	}
	if f.subscriptions <= f.failures {
		s.OnError(errTransient)
		return
	}
	s.OnComplete()
}

func resubscriptions(name string) float64 {
	return testutil.ToFloat64(flowz.Resubscriptions.WithLabelValues(name))
}

func TestRetryBasicFunctionality(t *testing.T) {
	src := &flaky{items: []int{1, 2}, failures: 2}
	retry := flowz.NewRetry[int](src, isTransient).WithName("retry-basic")

	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	retry.Subscribe(sub)

	sub.AssertValues(t, 1, 2, 1, 2, 1, 2).AssertComplete(t)
	assert.Equal(t, 3, src.subscriptions)
	assert.Equal(t, float64(2), resubscriptions("retry-basic"))
}

func TestRetrySuccessOnFirstAttempt(t *testing.T) {
	src := &flaky{items: []int{7}}
	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	flowz.NewRetry[int](src, isTransient).Subscribe(sub)

	sub.AssertValues(t, 7).AssertComplete(t)
	assert.Equal(t, 1, src.subscriptions)
}

func TestRetryRejectedError(t *testing.T) {
	fatal := errors.New("permanent")
	var subscriptions int
	src := flowz.Defer(func() (flowz.Publisher[int], error) {
		subscriptions++
		return flowz.Fail[int](fatal), nil
	})

	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	flowz.NewRetry(src, isTransient).WithName("retry-reject").Subscribe(sub)

	sub.AssertError(t, fatal)
	assert.Equal(t, 1, subscriptions)
	assert.Zero(t, resubscriptions("retry-reject"))
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	src := &flaky{failures: 100}
	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	flowz.NewRetry[int](src, isTransient).MaxAttempts(3).WithName("retry-max").Subscribe(sub)

	sub.AssertError(t, errTransient)
	assert.Equal(t, 3, src.subscriptions, "MaxAttempts counts the initial subscription")
	assert.Equal(t, float64(2), resubscriptions("retry-max"))
}

func TestRetryPredicatePanics(t *testing.T) {
	src := &flaky{failures: 1}
	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	flowz.NewRetry[int](src, func(error) bool { panic("classifier broke") }).Subscribe(sub)

	require.Error(t, sub.Err())
	var se *flowz.StreamError[error]
	require.ErrorAs(t, sub.Err(), &se)
	assert.Equal(t, errTransient, se.Item)

	var pe *flowz.PanicError
	assert.ErrorAs(t, se.Err, &pe)
	assert.Equal(t, []error{errTransient}, flowz.Suppressed(sub.Err()))
	assert.Equal(t, 1, src.subscriptions)
}

func TestRetryConstantStackDepth(t *testing.T) {
	const failures = 10000
	var depths []int
	pcs := make([]uintptr, 512)
	src := flowz.PublisherFunc[int](func(s flowz.Subscriber[int]) {
		depths = append(depths, runtime.Callers(0, pcs))
		if len(depths) <= failures {
			flowz.Fail[int](errTransient).Subscribe(s)
			return
		}
		flowz.Just(1).Subscribe(s)
	})

	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	flowz.NewRetry(src, isTransient).Subscribe(sub)

	sub.AssertValues(t, 1).AssertComplete(t)
	require.Len(t, depths, failures+1)
	for i, d := range depths {
		if d != depths[0] {
			t.Fatalf("subscription %d ran at stack depth %d, first ran at %d", i, d, depths[0])
		}
	}
}

func TestRetryCarriesDemandOver(t *testing.T) {
	src := flowztest.NewPublisher[int]()
	sub := flowztest.NewSubscriber[int](10)
	flowz.NewRetry[int](src, isTransient).Subscribe(sub)

	src.Next(1, 2, 3, 4)
	src.Error(errTransient)

	assert.Equal(t, []int64{10, 6}, src.Requested(), "the new subscription is owed the outstanding demand")

	sub.Request(5)
	assert.Equal(t, []int64{10, 11}, src.Requested())

	src.Next(5)
	src.Complete()
	sub.AssertValues(t, 1, 2, 3, 4, 5).AssertComplete(t)
}

func TestRetryNoDemandNoRequest(t *testing.T) {
	src := flowztest.NewPublisher[int]()
	sub := flowztest.NewSubscriber[int](0)
	flowz.NewRetry[int](src, isTransient).Subscribe(sub)

	src.Error(errTransient)
	assert.Equal(t, []int64{0, 0}, src.Requested())
	assert.Equal(t, 2, src.SubscriberCount())
}

func TestRetryCancel(t *testing.T) {
	src := flowztest.NewPublisher[int]()
	sub := flowztest.NewSubscriber[int](flowz.Unbounded)
	flowz.NewRetry[int](src, isTransient).Subscribe(sub)

	src.Error(errTransient)
	sub.Cancel()
	assert.True(t, src.Cancelled())

	// Nothing reaches the cancelled subscriber.
	src.Next(1)
	src.Error(errTransient)
	assert.Equal(t, 2, src.SubscriberCount())
	sub.AssertValues(t).AssertNotTerminated(t)
}

func TestRetryInvalidRequest(t *testing.T) {
	src := flowztest.NewPublisher[int]()
	sub := flowztest.NewSubscriber[int](0)
	flowz.NewRetry[int](src, isTransient).Subscribe(sub)

	sub.Request(-5)
	sub.AssertError(t, flowz.ErrInvalidRequest)
	assert.True(t, src.Cancelled())
}

func TestRetryName(t *testing.T) {
	r := flowz.NewRetry[int](flowz.Empty[int](), isTransient)
	assert.Equal(t, "retry", r.Name())
	assert.Equal(t, "fetch", r.WithName("fetch").Name())
}
