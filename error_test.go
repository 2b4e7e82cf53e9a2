package flowz

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStreamError(t *testing.T) {
	cause := errors.New("bad input")
	se := NewStreamError(42, cause, "parser")

	if se.Item != 42 || se.Operator != "parser" {
		t.Errorf("unexpected fields: %+v", se)
	}
	if !errors.Is(se, cause) {
		t.Error("StreamError should unwrap to its cause")
	}
	if time.Since(se.Timestamp) > time.Second {
		t.Error("timestamp should be recent")
	}
	if !strings.Contains(se.Error(), "StreamError[parser]: bad input (item: 42") {
		t.Errorf("unexpected message %q", se.Error())
	}

	v, ok := ValueCause(se)
	if !ok || v != 42 {
		t.Errorf("ValueCause = %v, %v", v, ok)
	}
}

func TestWrapCallbackKeepsAttribution(t *testing.T) {
	inner := NewStreamError("a", errors.New("x"), "first")
	wrapped := wrapCallback(7, inner, "second")
	if wrapped != error(inner) {
		t.Errorf("expected the attributed error to pass through, got %v", wrapped)
	}

	plain := wrapCallback(7, errors.New("y"), "second")
	var se *StreamError[int]
	if !errors.As(plain, &se) || se.Operator != "second" || se.Item != 7 {
		t.Errorf("expected a StreamError from second, got %v", plain)
	}
}

func TestSuppress(t *testing.T) {
	primary := errors.New("primary")
	first := errors.New("first")
	second := errors.New("second")

	err := Suppress(primary, first, nil)
	err = Suppress(err, second)

	var se *SuppressedError
	if !errors.As(err, &se) {
		t.Fatalf("expected SuppressedError, got %T", err)
	}
	if se.Primary() != primary {
		t.Errorf("expected primary to be kept, got %v", se.Primary())
	}
	causes := Suppressed(err)
	if len(causes) != 2 || causes[0] != first || causes[1] != second {
		t.Errorf("unexpected suppressed causes %v", causes)
	}
	if !errors.Is(err, primary) || !errors.Is(err, second) {
		t.Error("primary and suppressed causes should match errors.Is")
	}
	if got := err.Error(); got != "primary (suppressed: first; second)" {
		t.Errorf("unexpected message %q", got)
	}
	if Suppress(nil, first) != nil {
		t.Error("a nil primary should stay nil")
	}
}

func TestSuppressDoesNotAlias(t *testing.T) {
	base := Suppress(errors.New("p"), errors.New("a"))
	_ = Suppress(base, errors.New("b"))
	if n := len(Suppressed(base)); n != 1 {
		t.Errorf("suppressing onto an error must not modify it, got %d causes", n)
	}
}

func TestCallRecoversPanics(t *testing.T) {
	_, err := call(func() (int, error) {
		panic("kaboom")
	})
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Value != "kaboom" {
		t.Errorf("expected PanicError, got %v", err)
	}

	cause := errors.New("wrapped")
	err = callErr(func() error { panic(cause) })
	if !errors.Is(err, cause) {
		t.Errorf("panic with an error should unwrap to it, got %v", err)
	}
}

func TestCallRethrowsFatal(t *testing.T) {
	fatal := Fatal(errors.New("out of memory"))

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !IsFatal(err) {
			t.Errorf("expected a fatal panic, got %v", r)
		}
	}()
	_ = callErr(func() error { return fatal })
	t.Error("fatal error should have panicked")
}
