package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 10

// Error is a coded error. Message overrides the code's default text and Err
// keeps the cause for errors.Is and errors.As.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error carrying the default message of code.
func New(code ErrorCode) *Error {
	return newError(code, code.Message(), nil)
}

// Newf creates an error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return newError(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code to err and keeps its text. Returns nil for a nil err.
func Wrap(err error, code ErrorCode) *Error {
	if err == nil {
		return nil
	}
	return newError(code, err.Error(), err)
}

// Wrapf attaches code and a formatted message to err. Returns nil for a nil err.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return newError(code, fmt.Sprintf(format, args...), err)
}

// WithMessage replaces the message.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithDetail records one key-value detail, reported in the response envelope.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ValidationError reports an invalid request field.
func ValidationError(field, reason string) *Error {
	return newError(ValidationFailed, ValidationFailed.Message(), nil).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// GetCode returns the code of the first *Error in the chain,
// InternalServerError for foreign errors and Success for nil.
func GetCode(err error) ErrorCode {
	if err == nil {
		return Success
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	return InternalServerError
}

// GetError returns the first *Error in the chain, wrapping foreign errors as
// InternalServerError.
func GetError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := asError(err); ok {
		return e
	}
	return Wrap(err, InternalServerError)
}

// Is reports whether the chain holds an *Error with code.
func Is(err error, code ErrorCode) bool {
	e, ok := asError(err)
	return ok && e.Code == code
}

func asError(err error) (*Error, bool) {
	var e *Error
	if err == nil || !stderrors.As(err, &e) {
		return nil, false
	}
	return e, true
}

func newError(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Details: make(map[string]interface{}),
		Err:     cause,
		Stack:   callerStack(3),
	}
}

// callerStack renders up to maxStackDepth frames above skip, runtime frames
// excluded.
func callerStack(skip int) string {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&b, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return b.String()
}
