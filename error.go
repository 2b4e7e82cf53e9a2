package flowz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Protocol and operator errors.
var (
	// ErrInvalidRequest is signaled when Request is called with n <= 0.
	ErrInvalidRequest = errors.New("flowz: request amount must be positive")

	// ErrDuplicateSubscription is dropped when OnSubscribe is called twice.
	ErrDuplicateSubscription = errors.New("flowz: subscription already set")

	// ErrIndexOutOfRange is signaled by ElementAt when the source has fewer
	// items than the index and no default is configured.
	ErrIndexOutOfRange = errors.New("flowz: index out of range")

	// ErrNilSource is signaled when a factory returns a nil Publisher.
	ErrNilSource = errors.New("flowz: factory returned a nil publisher")

	// ErrMissingBackpressure is signaled when an operator must emit but the
	// downstream has no outstanding demand.
	ErrMissingBackpressure = errors.New("flowz: could not emit due to lack of requests")

	// ErrWindowOverflow is signaled by a Window whose buffer is full.
	ErrWindowOverflow = errors.New("flowz: window buffer overflow")

	// ErrWindowSubscribed is signaled to the second subscriber of a Window.
	ErrWindowSubscribed = errors.New("flowz: window allows only a single subscriber")

	// ErrNoSuchElement is returned by blocking helpers on empty sequences.
	ErrNoSuchElement = errors.New("flowz: sequence is empty")
)

// StreamError represents a failure raised by a user callback while
// processing an item. It captures the offending item, the cause, and the
// operator that invoked the callback, so the terminal consumer can attribute
// the failure.
//
//nolint:govet // fieldalignment: struct layout optimized for readability over memory
type StreamError[T any] struct {
	// Item is the value being processed when the callback failed.
	Item T

	// Err is the underlying error returned or raised by the callback.
	Err error

	// Operator identifies which operator invoked the callback.
	Operator string

	// Timestamp records when the error occurred.
	Timestamp time.Time
}

// NewStreamError creates a new StreamError with the current timestamp.
func NewStreamError[T any](item T, err error, operator string) *StreamError[T] {
	return &StreamError[T]{
		Item:      item,
		Err:       err,
		Operator:  operator,
		Timestamp: time.Now(),
	}
}

// String returns a human-readable representation of the error.
func (se *StreamError[T]) String() string {
	return fmt.Sprintf("StreamError[%s]: %v (item: %v, time: %s)",
		se.Operator, se.Err, se.Item, se.Timestamp.Format(time.RFC3339))
}

// Error implements the error interface.
func (se *StreamError[T]) Error() string {
	return se.String()
}

// Unwrap returns the underlying error, enabling error wrapping chains.
func (se *StreamError[T]) Unwrap() error {
	return se.Err
}

func (se *StreamError[T]) value() any {
	return se.Item
}

// valueCarrier is implemented by every StreamError instantiation.
type valueCarrier interface {
	error
	value() any
}

// ValueCause returns the item attached to the first StreamError in err's
// chain, if any.
func ValueCause(err error) (any, bool) {
	var vc valueCarrier
	if errors.As(err, &vc) {
		return vc.value(), true
	}
	return nil, false
}

// wrapCallback attributes a callback failure to an operator and item.
// Errors that already carry an attribution are passed through untouched.
func wrapCallback[T any](item T, err error, operator string) error {
	var vc valueCarrier
	if errors.As(err, &vc) {
		return err
	}
	return NewStreamError(item, err, operator)
}

// SuppressedError carries a primary error together with an ordered list of
// secondary causes that were raised while handling it, such as a failing
// resource cleanup during an error termination.
type SuppressedError struct {
	err        error
	suppressed error
}

// Suppress attaches causes to primary. If primary is already a
// SuppressedError the causes are appended to a copy of its list. Nil causes are
// ignored; a nil primary returns nil.
func Suppress(primary error, causes ...error) error {
	if primary == nil {
		return nil
	}
	se := &SuppressedError{err: primary}
	if prev, ok := primary.(*SuppressedError); ok {
		se.err = prev.err
		se.suppressed = multierr.Combine(prev.Suppressed()...)
	}
	for _, c := range causes {
		multierr.AppendInto(&se.suppressed, c)
	}
	return se
}

// Primary returns the primary error.
func (e *SuppressedError) Primary() error {
	return e.err
}

// Suppressed returns the secondary causes in the order they were attached.
func (e *SuppressedError) Suppressed() []error {
	return multierr.Errors(e.suppressed)
}

// Error implements the error interface.
func (e *SuppressedError) Error() string {
	causes := e.Suppressed()
	if len(causes) == 0 {
		return e.err.Error()
	}
	parts := make([]string, len(causes))
	for i, c := range causes {
		parts[i] = c.Error()
	}
	return fmt.Sprintf("%v (suppressed: %s)", e.err, strings.Join(parts, "; "))
}

// Unwrap exposes the primary error followed by the suppressed causes.
func (e *SuppressedError) Unwrap() []error {
	return append([]error{e.err}, e.Suppressed()...)
}

// Suppressed returns the suppressed causes attached to err, if any.
func Suppressed(err error) []error {
	var se *SuppressedError
	if errors.As(err, &se) {
		return se.Suppressed()
	}
	return nil
}

// FatalError marks a failure that must not be delivered as a stream signal.
// Operators re-panic with it instead of routing it downstream.
type FatalError struct {
	Err error
}

// Fatal wraps err so that operators treat it as unrecoverable.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

func (e *FatalError) Error() string {
	return "flowz: fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// PanicError is produced when a user callback panics with a non-fatal value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("flowz: callback panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// throwIfFatal re-panics with err when it is fatal.
func throwIfFatal(err error) {
	if err != nil && IsFatal(err) {
		panic(err)
	}
}

// recoverCallback converts a recovered panic into an error. Fatal values
// are re-panicked.
func recoverCallback(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		throwIfFatal(err)
	}
	Logger().Debugw("recovered callback panic", "value", r)
	return &PanicError{Value: r}
}

// call runs a callback returning a value and an error, converting panics.
func call[R any](fn func() (R, error)) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverCallback(r)
		}
	}()
	v, err = fn()
	throwIfFatal(err)
	return v, err
}

// callErr runs a callback returning only an error, converting panics.
func callErr(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverCallback(r)
		}
	}()
	err = fn()
	throwIfFatal(err)
	return err
}
