package strategy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/ValentinKolb/kvcopy/lib/endpoint"
)

// --------------------------------------------------------------------------
// Outcome
// --------------------------------------------------------------------------

// Outcome is the result of one operation against one endpoint: either the
// returned value (Err == nil) or the raised error.
type Outcome struct {
	Value any
	Err   error
}

// Returned reports whether the operation completed without an error
func (o Outcome) Returned() bool {
	return o.Err == nil
}

// Equal compares two outcomes structurally.
//
//   - two returned values are equal if they are deeply equal
//   - a returned value never equals a raised error
//   - two raised errors are equal only if both are *endpoint.Error values with
//     the same code and message, all other errors compare unequal
func (o Outcome) Equal(other Outcome) bool {
	switch {
	case o.Returned() && other.Returned():
		return reflect.DeepEqual(o.Value, other.Value)
	case o.Returned() != other.Returned():
		return false
	}

	var a, b *endpoint.Error
	if !errors.As(o.Err, &a) || !errors.As(other.Err, &b) {
		return false
	}
	return a.Code == b.Code && a.Msg == b.Msg
}

func (o Outcome) String() string {
	if o.Returned() {
		return fmt.Sprintf("returned(%#v)", o.Value)
	}
	return fmt.Sprintf("raised(%v)", o.Err)
}

// PanicError is the cause of an Outcome whose operation panicked
type PanicError struct {
	Value any    // The value passed to panic
	Stack []byte // Stack trace of the panicking goroutine
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// --------------------------------------------------------------------------
// Capture
// --------------------------------------------------------------------------

// Capture runs op against ep and turns its result into an Outcome.
// Errors and panics of op never propagate, they become raised outcomes.
func Capture[T any](ctx context.Context, ep endpoint.Endpoint, op func(context.Context, endpoint.Endpoint) (T, error)) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	v, err := op(ctx, ep)
	if err != nil {
		return Outcome{Err: err}
	}
	return Outcome{Value: v}
}
