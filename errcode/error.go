// Package errcode provides layered error codes.
// Code format: MMBBBB (MM = module code, BBBB = business code).
package errcode

import (
	"errors"
	"fmt"
	"net/http"
)

// LayeredError is an error with a stable numeric code, an HTTP status and an optional cause
type LayeredError struct {
	module     string
	code       int
	msg        string
	httpStatus int
	data       map[string]interface{} // context returned to clients, e.g. field errors
	cause      error
}

// New creates a layered error. httpStatus defaults to 500.
func New(moduleCode, businessCode int, module, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusInternalServerError
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msg:        msg,
		httpStatus: status,
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *LayeredError) Code() int       { return e.code }
func (e *LayeredError) Module() string  { return e.module }
func (e *LayeredError) Message() string { return e.msg }
func (e *LayeredError) HTTPStatus() int { return e.httpStatus }
func (e *LayeredError) Unwrap() error   { return e.cause }

// Data returns the attached context, nil when none
func (e *LayeredError) Data() map[string]interface{} { return e.data }

// WithData returns a copy with key set in its context data
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = make(map[string]interface{}, len(e.data)+1)
	for k, v := range e.data {
		clone.data[k] = v
	}
	clone.data[key] = value
	return &clone
}

// WithMsg returns a copy with a replaced message
func (e *LayeredError) WithMsg(msg string) *LayeredError {
	clone := *e
	clone.msg = msg
	return &clone
}

// WithMsgf returns a copy with a formatted message
func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	return e.WithMsg(fmt.Sprintf(format, args...))
}

// Wrap returns a copy carrying cause. A nil cause returns e unchanged.
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Wrapf wraps cause and replaces the message
func (e *LayeredError) Wrapf(cause error, format string, args ...interface{}) *LayeredError {
	clone := e.Wrap(cause).WithMsgf(format, args...)
	return clone
}

// Is matches any LayeredError with the same code
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

func (e *LayeredError) String() string {
	if e.cause != nil {
		return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s, cause:%v}", e.code, e.module, e.msg, e.cause)
	}
	return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s}", e.code, e.module, e.msg)
}

// From finds the outermost LayeredError in err's chain
func From(err error) (*LayeredError, bool) {
	var layered *LayeredError
	if errors.As(err, &layered) {
		return layered, true
	}
	return nil, false
}
