package flowz

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetDropHooks(t *testing.T) {
	var errs []error
	var items []any
	restore := SetDropHooks(DropHooks{
		OnErrorDropped: func(err error) { errs = append(errs, err) },
		OnNextDropped:  func(v any) { items = append(items, v) },
	})

	errsBefore, itemsBefore := DroppedCount()
	metricBefore := testutil.ToFloat64(DroppedSignals.WithLabelValues(dropKindError))

	OnErrorDropped(errors.New("late"))
	OnNextDropped("x")

	if len(errs) != 1 || len(items) != 1 || items[0] != "x" {
		t.Errorf("hooks not called: errs=%v items=%v", errs, items)
	}
	errsAfter, itemsAfter := DroppedCount()
	if errsAfter-errsBefore != 1 || itemsAfter-itemsBefore != 1 {
		t.Errorf("unexpected dropped counts: %d errors, %d items", errsAfter-errsBefore, itemsAfter-itemsBefore)
	}
	if got := testutil.ToFloat64(DroppedSignals.WithLabelValues(dropKindError)) - metricBefore; got != 1 {
		t.Errorf("expected the error metric to grow by 1, got %v", got)
	}

	restore()
	OnNextDropped("y")
	if len(items) != 1 {
		t.Error("restored hooks should not call the replaced ones")
	}
}

func TestSetDropHooksDefaults(t *testing.T) {
	var errs []error
	restore := SetDropHooks(DropHooks{OnErrorDropped: func(err error) { errs = append(errs, err) }})
	defer restore()

	// A nil OnNextDropped falls back to the logging hook.
	OnNextDropped(1)
	OnErrorDropped(errors.New("e"))
	if len(errs) != 1 {
		t.Errorf("expected one error, got %v", errs)
	}
}
