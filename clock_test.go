package flowz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.uber.org/atomic"
)

const taskWait = 5 * time.Second

func advance(clock *clockz.FakeClock, d time.Duration) {
	clock.Advance(d)
	clock.BlockUntilReady()
}

func awaitRuns(t *testing.T, runs *atomic.Int32, want int32) {
	t.Helper()
	require.Eventually(t, func() bool { return runs.Load() == want }, taskWait, time.Millisecond,
		"expected %d runs, got %d", want, runs.Load())
}

func TestClockSchedulerSubmit(t *testing.T) {
	clock := clockz.NewFakeClock()
	sched := NewClockScheduler(clock)

	var runs atomic.Int32
	sched.Submit(func() { runs.Inc() }, 100*time.Millisecond)

	advance(clock, 50*time.Millisecond)
	assert.Never(t, func() bool { return runs.Load() != 0 }, 20*time.Millisecond, time.Millisecond,
		"task ran before its delay")

	advance(clock, 50*time.Millisecond)
	awaitRuns(t, &runs, 1)

	advance(clock, time.Second)
	assert.Never(t, func() bool { return runs.Load() != 1 }, 20*time.Millisecond, time.Millisecond,
		"a submitted task runs once")
}

func TestClockSchedulerSubmitCancel(t *testing.T) {
	clock := clockz.NewFakeClock()
	sched := NewClockScheduler(clock)

	var runs atomic.Int32
	task := sched.Submit(func() { runs.Inc() }, 10*time.Millisecond)
	task.Cancel()
	task.Cancel()

	advance(clock, time.Second)
	assert.Never(t, func() bool { return runs.Load() != 0 }, 20*time.Millisecond, time.Millisecond,
		"cancelled task ran")
}

func TestClockSchedulerSchedule(t *testing.T) {
	clock := clockz.NewFakeClock()
	sched := NewClockScheduler(clock)

	var runs atomic.Int32
	task := sched.Schedule(func() { runs.Inc() }, 10*time.Millisecond)

	for i := int32(1); i <= 5; i++ {
		advance(clock, 10*time.Millisecond)
		awaitRuns(t, &runs, i)
	}

	task.Cancel()
	advance(clock, 10*time.Millisecond)
	assert.Never(t, func() bool { return runs.Load() != 5 }, 20*time.Millisecond, time.Millisecond,
		"periodic task ran after cancel")
}

// Tasks run off the clock's own call stack, so a task may read the clock
// and arm further timers on it.
func TestClockSchedulerTaskUsesClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	sched := NewClockScheduler(clock)
	start := clock.Now()

	var ticks, followUps atomic.Int32
	var seen []time.Duration
	done := make(chan struct{}, 4)
	task := sched.Schedule(func() {
		seen = append(seen, clock.Now().Sub(start))
		sched.Submit(func() {
			followUps.Inc()
			done <- struct{}{}
		}, 3*time.Millisecond)
		ticks.Inc()
	}, 10*time.Millisecond)
	defer task.Cancel()

	for i := int32(1); i <= 2; i++ {
		advance(clock, 10*time.Millisecond)
		awaitRuns(t, &ticks, i)
		advance(clock, 3*time.Millisecond)
		select {
		case <-done:
		case <-time.After(taskWait):
			t.Fatalf("follow-up %d did not run", i)
		}
	}

	assert.Equal(t, int32(2), followUps.Load())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 23 * time.Millisecond}, seen)
}

func TestClockSchedulerCancelFromTask(t *testing.T) {
	clock := clockz.NewFakeClock()
	sched := NewClockScheduler(clock)

	var runs atomic.Int32
	var task Cancellable
	task = sched.Schedule(func() {
		if runs.Inc() == 2 {
			task.Cancel()
		}
	}, time.Millisecond)

	advance(clock, time.Millisecond)
	awaitRuns(t, &runs, 1)
	advance(clock, time.Millisecond)
	awaitRuns(t, &runs, 2)
	for i := 0; i < 2; i++ {
		advance(clock, time.Millisecond)
	}
	assert.Never(t, func() bool { return runs.Load() != 2 }, 20*time.Millisecond, time.Millisecond,
		"the task stops itself after 2 runs")
}
