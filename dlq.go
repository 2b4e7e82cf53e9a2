package flowz

import (
	"sync"

	"go.uber.org/atomic"
)

// DropHooks receive signals that arrive after their subscription's contract
// has already terminated: an item after completion, a second error, a
// cleanup failure after the terminal signal fired. They exist for
// diagnostics only and must not be used for control flow.
type DropHooks struct {
	// OnErrorDropped receives errors that could not be delivered.
	OnErrorDropped func(err error)

	// OnNextDropped receives items that could not be delivered.
	OnNextDropped func(v any)
}

var (
	hooksMu sync.RWMutex
	hooks   = defaultDropHooks()

	droppedErrors atomic.Uint64
	droppedNext   atomic.Uint64
)

func defaultDropHooks() DropHooks {
	return DropHooks{
		OnErrorDropped: func(err error) {
			Logger().Warnw("error dropped", "error", err)
		},
		OnNextDropped: func(v any) {
			Logger().Debugw("item dropped", "value", v)
		},
	}
}

// SetDropHooks installs process-wide drop hooks and returns a function
// restoring the previous ones. Nil fields fall back to the default logging
// hooks.
func SetDropHooks(h DropHooks) (restore func()) {
	def := defaultDropHooks()
	if h.OnErrorDropped == nil {
		h.OnErrorDropped = def.OnErrorDropped
	}
	if h.OnNextDropped == nil {
		h.OnNextDropped = def.OnNextDropped
	}

	hooksMu.Lock()
	prev := hooks
	hooks = h
	hooksMu.Unlock()

	return func() {
		hooksMu.Lock()
		hooks = prev
		hooksMu.Unlock()
	}
}

// OnErrorDropped routes an undeliverable error to the drop channel.
func OnErrorDropped(err error) {
	droppedErrors.Inc()
	DroppedSignals.WithLabelValues(dropKindError).Inc()

	hooksMu.RLock()
	fn := hooks.OnErrorDropped
	hooksMu.RUnlock()
	fn(err)
}

// OnNextDropped routes an undeliverable item to the drop channel.
func OnNextDropped(v any) {
	droppedNext.Inc()
	DroppedSignals.WithLabelValues(dropKindNext).Inc()

	hooksMu.RLock()
	fn := hooks.OnNextDropped
	hooksMu.RUnlock()
	fn(v)
}

// DroppedCount returns how many errors and items have been dropped since the
// process started.
func DroppedCount() (errs, items uint64) {
	return droppedErrors.Load(), droppedNext.Load()
}
