package endpoint

import "fmt"

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message. Two errors with the same code match with errors.Is,
// independent of their message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("EndpointError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with the given code and a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// Sentinel errors to be used with errors.Is
var (
	ErrNotFound         = NewError(RetCNotFound, "key not found")
	ErrWrongType        = NewError(RetCWrongType, "operation against a key holding the wrong kind of value")
	ErrUnsupported      = NewError(RetCUnsupportedOperation, "operation is not supported")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the endpoint.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: The key does not exist.
	RetCWrongType                           // 5: The key holds a value of another type.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCWrongType:
		return "WrongType"
	default:
		return "Unknown"
	}
}
