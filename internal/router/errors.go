package router

import "fmt"

// Error is the single structured error value every handler and twin returns
// for expected domain failures (spec.md §7, Design Note "Exception-based
// control flow"). It is never used for programmer bugs.
type Error struct {
	Code    string
	Message string
	Detail  map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// NewError builds an Error with no detail payload.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches structured detail and returns the same Error for chaining.
func (e *Error) WithDetail(detail map[string]any) *Error {
	e.Detail = detail
	return e
}

// AsError extracts a *Error from any error value, if present.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	return nil, false
}

// Reserved tool/method names that the Router itself handles rather than
// routing to a twin (spec.md §6).
var ReservedNames = map[string]bool{
	"observe":         true,
	"tick":            true,
	"pending":         true,
	"state":           true,
	"help":            true,
	"tools.search":    true,
	"act_and_observe": true,
	"call":            true,
	"reset":           true,
}
