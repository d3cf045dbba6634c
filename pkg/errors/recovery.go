package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error that was created from a recovered panic.
// Plot backends panic on some degenerate inputs (empty ranges, zero-width
// canvases); the render path turns those into PanicErrors.
type PanicError struct {
	// PanicValue is the original value passed to panic()
	PanicValue interface{}

	// StackTrace contains the stack trace at the time of panic
	StackTrace string

	// Operation identifies where the panic was recovered
	Operation string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String provides detailed information including stack trace.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s",
		e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError creates a new PanicError with the given operation context and panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover is meant to be deferred with a pointer to the named error result
// of the enclosing function:
//
//	func draw() (err error) {
//	    defer Recover(&err, "draw")
//	    ...
//	}
//
// A panic becomes a PanicError. If the function had already set an error,
// the panic is reported on top of it and the original stays in the chain.
func Recover(err *error, operation string) {
	if r := recover(); r != nil {
		if *err != nil {
			*err = fmt.Errorf("panic in %s: %v (original error: %w)", operation, r, *err)
			return
		}
		*err = NewPanicError(operation, r)
	}
}

// SafeExecute runs fn and converts any panic into an error.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
