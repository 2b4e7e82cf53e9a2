// Package testing provides test utilities for flowz: a recording
// Subscriber with fusion support, drop-channel capture, and channel
// collection helpers.
package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zoobzio/flowz"
)

// DefaultTimeout bounds every Await helper that is not given a timeout.
const DefaultTimeout = 5 * time.Second

// Subscriber records every signal it receives. It requests an initial
// amount on subscription and can negotiate fusion with the upstream, in
// which case it drains by polling and still records values in order.
//
// A Subscriber is safe for concurrent inspection while it is being fed.
type Subscriber[T any] struct {
	initial int64
	fusion  flowz.FusionMode
	onNext  func(T)

	mu         sync.Mutex
	sub        flowz.Subscription
	qs         flowz.QueueSubscription[T]
	mode       flowz.FusionMode
	values     []T
	signals    []flowz.Signal[T]
	err        error
	completed  bool
	terminals  int
	subscribes int
	notify     chan struct{}
}

// NewSubscriber returns a Subscriber requesting initial items on
// subscription. Use flowz.Unbounded to disable backpressure, or 0 to
// request manually.
func NewSubscriber[T any](initial int64) *Subscriber[T] {
	return &Subscriber[T]{
		initial: initial,
		notify:  make(chan struct{}),
	}
}

// WithFusion makes the Subscriber request mode from a fuseable upstream.
func (s *Subscriber[T]) WithFusion(mode flowz.FusionMode) *Subscriber[T] {
	s.fusion = mode
	return s
}

// WithOnNext registers a callback run after each value is recorded.
func (s *Subscriber[T]) WithOnNext(fn func(T)) *Subscriber[T] {
	s.onNext = fn
	return s
}

// OnSubscribe implements flowz.Subscriber.
func (s *Subscriber[T]) OnSubscribe(sub flowz.Subscription) {
	s.mu.Lock()
	s.subscribes++
	if s.sub != nil {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.sub = sub
	s.mu.Unlock()

	if s.fusion != flowz.FusionNone {
		if qs, ok := sub.(flowz.QueueSubscription[T]); ok {
			mode := qs.RequestFusion(s.fusion)
			s.mu.Lock()
			s.qs = qs
			s.mode = mode
			s.mu.Unlock()
			if mode == flowz.FusionSync {
				s.drainSync()
				return
			}
		}
	}
	if s.initial > 0 {
		sub.Request(s.initial)
	}
}

// OnNext implements flowz.Subscriber. In asynchronous fusion mode it
// drains the upstream queue instead of recording the signal value.
func (s *Subscriber[T]) OnNext(v T) {
	if s.FusionMode() == flowz.FusionAsync {
		s.drainAsync()
		return
	}
	s.record(flowz.Next(v))
}

// OnError implements flowz.Subscriber.
func (s *Subscriber[T]) OnError(err error) {
	if s.FusionMode() == flowz.FusionAsync {
		s.drainAsync()
	}
	s.record(flowz.Error[T](err))
}

// OnComplete implements flowz.Subscriber.
func (s *Subscriber[T]) OnComplete() {
	if s.FusionMode() == flowz.FusionAsync {
		s.drainAsync()
	}
	s.record(flowz.Complete[T]())
}

func (s *Subscriber[T]) drainSync() {
	for {
		v, ok, err := s.qs.Poll()
		if err != nil {
			s.record(flowz.Error[T](err))
			return
		}
		if !ok {
			s.record(flowz.Complete[T]())
			return
		}
		s.record(flowz.Next(v))
	}
}

func (s *Subscriber[T]) drainAsync() {
	for {
		v, ok, err := s.qs.Poll()
		if err != nil {
			s.qs.Cancel()
			s.record(flowz.Error[T](err))
			return
		}
		if !ok {
			return
		}
		s.record(flowz.Next(v))
	}
}

func (s *Subscriber[T]) record(sig flowz.Signal[T]) {
	s.mu.Lock()
	s.signals = append(s.signals, sig)
	switch sig.Kind() {
	case flowz.KindNext:
		s.values = append(s.values, sig.Value())
	case flowz.KindError:
		s.terminals++
		if s.err == nil && !s.completed {
			s.err = sig.Err()
		}
	case flowz.KindComplete:
		s.terminals++
		if s.err == nil {
			s.completed = true
		}
	}
	close(s.notify)
	s.notify = make(chan struct{})
	onNext := s.onNext
	s.mu.Unlock()

	if onNext != nil && sig.IsNext() {
		onNext(sig.Value())
	}
}

// Request asks the upstream for n more items.
func (s *Subscriber[T]) Request(n int64) {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Request(n)
	}
}

// Cancel cancels the upstream subscription.
func (s *Subscriber[T]) Cancel() {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Subscription returns the subscription received, or nil.
func (s *Subscriber[T]) Subscription() flowz.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// FusionMode returns the negotiated fusion mode.
func (s *Subscriber[T]) FusionMode() flowz.FusionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Values returns a copy of the values received so far.
func (s *Subscriber[T]) Values() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.values...)
}

// Signals returns a copy of every signal received so far, in order.
func (s *Subscriber[T]) Signals() []flowz.Signal[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flowz.Signal[T](nil), s.signals...)
}

// Err returns the terminal error, if any.
func (s *Subscriber[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Completed reports whether the sequence completed successfully.
func (s *Subscriber[T]) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Terminated reports whether a terminal signal was received.
func (s *Subscriber[T]) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminals > 0
}

// await blocks until cond holds or the timeout elapses.
func (s *Subscriber[T]) await(cond func() bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		ok := cond()
		ch := s.notify
		s.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-ch:
		case <-deadline.C:
			s.mu.Lock()
			defer s.mu.Unlock()
			return cond()
		}
	}
}

// AwaitTerminal waits for a terminal signal, failing t on timeout.
func (s *Subscriber[T]) AwaitTerminal(t testing.TB) *Subscriber[T] {
	t.Helper()
	if !s.await(func() bool { return s.terminals > 0 }, DefaultTimeout) {
		t.Fatalf("no terminal signal within %s; received %v", DefaultTimeout, s.Signals())
	}
	return s
}

// AwaitCount waits until at least n values were received, failing t on
// timeout.
func (s *Subscriber[T]) AwaitCount(t testing.TB, n int) *Subscriber[T] {
	t.Helper()
	if !s.await(func() bool { return len(s.values) >= n }, DefaultTimeout) {
		t.Fatalf("expected %d values within %s, got %v", n, DefaultTimeout, s.Values())
	}
	return s
}

// AssertValues checks the values received, in order.
func (s *Subscriber[T]) AssertValues(t testing.TB, want ...T) *Subscriber[T] {
	t.Helper()
	got := s.Values()
	if len(want) == 0 {
		require.Empty(t, got, "expected no values")
		return s
	}
	require.Equal(t, want, got)
	return s
}

// AssertComplete checks that exactly one terminal signal was received and
// that it was a completion.
func (s *Subscriber[T]) AssertComplete(t testing.TB) *Subscriber[T] {
	t.Helper()
	s.mu.Lock()
	completed, terminals, err := s.completed, s.terminals, s.err
	s.mu.Unlock()
	require.NoError(t, err)
	require.True(t, completed, "expected completion")
	require.Equal(t, 1, terminals, "expected exactly one terminal signal")
	return s
}

// AssertError checks that exactly one terminal signal was received and that
// it was an error matching target with errors.Is.
func (s *Subscriber[T]) AssertError(t testing.TB, target error) *Subscriber[T] {
	t.Helper()
	s.mu.Lock()
	terminals, err := s.terminals, s.err
	s.mu.Unlock()
	require.Error(t, err, "expected an error signal")
	require.True(t, errors.Is(err, target), "expected error matching %v, got %v", target, err)
	require.Equal(t, 1, terminals, "expected exactly one terminal signal")
	return s
}

// AssertNotTerminated checks that no terminal signal was received.
func (s *Subscriber[T]) AssertNotTerminated(t testing.TB) *Subscriber[T] {
	t.Helper()
	require.False(t, s.Terminated(), "unexpected terminal signal: %v", s.Signals())
	return s
}

// AssertFusionMode checks the negotiated fusion mode.
func (s *Subscriber[T]) AssertFusionMode(t testing.TB, want flowz.FusionMode) *Subscriber[T] {
	t.Helper()
	require.Equal(t, want, s.FusionMode(), "fusion mode")
	return s
}

// Drops captures the signals routed to the flowz drop channel.
type Drops struct {
	mu    sync.Mutex
	errs  []error
	items []any
}

// RecordDrops installs drop hooks recording into the returned Drops and
// restores the previous hooks when t finishes. Tests using it must not run
// in parallel with other tests relying on the drop hooks.
func RecordDrops(t testing.TB) *Drops {
	t.Helper()
	d := &Drops{}
	restore := flowz.SetDropHooks(flowz.DropHooks{
		OnErrorDropped: func(err error) {
			d.mu.Lock()
			d.errs = append(d.errs, err)
			d.mu.Unlock()
		},
		OnNextDropped: func(v any) {
			d.mu.Lock()
			d.items = append(d.items, v)
			d.mu.Unlock()
		},
	})
	t.Cleanup(restore)
	return d
}

// Errors returns the dropped errors.
func (d *Drops) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

// Items returns the dropped items.
func (d *Drops) Items() []any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]any(nil), d.items...)
}

// CollectSignalsWithTimeout collects signals from a channel until it is
// closed or the timeout elapses.
func CollectSignalsWithTimeout[T any](t testing.TB, ch <-chan flowz.Signal[T], timeout time.Duration) []flowz.Signal[T] {
	t.Helper()

	var signals []flowz.Signal[T]
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case sig, ok := <-ch:
			if !ok {
				return signals
			}
			signals = append(signals, sig)
		case <-timer.C:
			return signals
		}
	}
}

// CollectValues returns the values of the next signals in signals.
func CollectValues[T any](signals []flowz.Signal[T]) []T {
	values := make([]T, 0, len(signals))
	for _, s := range signals {
		if s.IsNext() {
			values = append(values, s.Value())
		}
	}
	return values
}

// Trace renders signals as strings, for comparing executions.
func Trace[T any](signals []flowz.Signal[T]) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = fmt.Sprint(s)
	}
	return out
}
