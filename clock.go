package flowz

import (
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/atomic"
)

// Clock provides time operations for deterministic testing.
type Clock = clockz.Clock

// Timer represents a single event timer.
type Timer = clockz.Timer

// Ticker delivers ticks at intervals.
type Ticker = clockz.Ticker

// RealClock is the default Clock using standard time.
var RealClock Clock = clockz.RealClock

// Cancellable is a handle to a scheduled task.
type Cancellable interface {
	// Cancel prevents future runs of the task. It does not interrupt a run
	// already in progress. It is idempotent.
	Cancel()
}

// Scheduler runs delayed and periodic tasks for time-based operators.
// Tasks may run on any goroutine.
type Scheduler interface {
	// Submit runs task once after delay.
	Submit(task func(), delay time.Duration) Cancellable

	// Schedule runs task every period, the first run one period from now.
	Schedule(task func(), period time.Duration) Cancellable
}

// ClockScheduler is a Scheduler driven by a Clock.
type ClockScheduler struct {
	clock Clock
}

// NewClockScheduler returns a Scheduler using clock's timers.
func NewClockScheduler(clock Clock) *ClockScheduler {
	return &ClockScheduler{clock: clock}
}

// DefaultScheduler runs tasks on the real clock.
var DefaultScheduler Scheduler = NewClockScheduler(RealClock)

// Submit implements Scheduler.
func (c *ClockScheduler) Submit(task func(), delay time.Duration) Cancellable {
	timer := c.clock.NewTimer(delay)
	t := newScheduledTask(func() { timer.Stop() })
	go func() {
		select {
		case <-timer.C():
			t.run(task)
		case <-t.stop:
		}
	}()
	return t
}

// Schedule implements Scheduler. Ticks that arrive while a run is still in
// progress are dropped, so a slow task does not shift the period.
func (c *ClockScheduler) Schedule(task func(), period time.Duration) Cancellable {
	ticker := c.clock.NewTicker(period)
	t := newScheduledTask(ticker.Stop)
	go func() {
		for {
			select {
			case <-ticker.C():
				if !t.run(task) {
					return
				}
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// scheduledTask owns the goroutine waiting on a timer or ticker channel.
// Tasks run on that goroutine, never on the clock's own call stack.
type scheduledTask struct {
	halt      func()
	stop      chan struct{}
	once      sync.Once
	cancelled atomic.Bool
}

func newScheduledTask(halt func()) *scheduledTask {
	return &scheduledTask{halt: halt, stop: make(chan struct{})}
}

// run executes task unless the task was cancelled, and reports whether
// further runs are allowed.
func (t *scheduledTask) run(task func()) bool {
	if t.cancelled.Load() {
		return false
	}
	task()
	return !t.cancelled.Load()
}

func (t *scheduledTask) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		t.halt()
		close(t.stop)
	})
}
