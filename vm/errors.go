package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies a runtime error. The numeric values are the stable
// process exit codes the host driver reports.
type ErrorKind int

const (
	// ErrMissingMain - the program has no Main class or no run method.
	ErrMissingMain ErrorKind = 31
	// ErrUndefined - read of an undefined variable, parameter, or keyword.
	ErrUndefined ErrorKind = 32
	// ErrArity - a method's block arity disagrees with its selector.
	ErrArity ErrorKind = 33
	// ErrCollision - assignment to a parameter or a reserved name.
	ErrCollision ErrorKind = 34
	// ErrDoesNotUnderstand - no dispatch phase accepted the message.
	ErrDoesNotUnderstand ErrorKind = 51
	// ErrType - malformed AST, misuse of self/super, or a collision between
	// attributes and methods.
	ErrType ErrorKind = 52
	// ErrValue - bad operand for an intrinsic, from: incompatibility,
	// division by zero, or integer overflow.
	ErrValue ErrorKind = 53
	// ErrInternal - interpreter invariant violation.
	ErrInternal ErrorKind = 99
)

// String returns a short tag for the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrMissingMain:
		return "missing main"
	case ErrUndefined:
		return "undefined variable"
	case ErrArity:
		return "arity error"
	case ErrCollision:
		return "variable collision"
	case ErrDoesNotUnderstand:
		return "does not understand"
	case ErrType:
		return "type error"
	case ErrValue:
		return "value error"
	case ErrInternal:
		return "internal error"
	default:
		return fmt.Sprintf("error(%d)", int(k))
	}
}

// Error is a SOL25-level runtime error. It unwinds unconditionally to the
// top-level driver, which maps it to a process exit code.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ExitCode returns the process exit code for this error.
func (e *Error) ExitCode() int {
	return int(e.Kind)
}

// Errorf creates an Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ExitCode extracts the exit code from any error. Errors that are not
// SOL25-level errors count as internal.
func ExitCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return int(ErrInternal)
}

// KindOf returns the kind of an error, or ErrInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ---------------------------------------------------------------------------
// Constructors for the common kinds
// ---------------------------------------------------------------------------

func typeErrorf(format string, args ...interface{}) *Error {
	return Errorf(ErrType, format, args...)
}

func valueErrorf(format string, args ...interface{}) *Error {
	return Errorf(ErrValue, format, args...)
}

func arityErrorf(format string, args ...interface{}) *Error {
	return Errorf(ErrArity, format, args...)
}

func collisionErrorf(format string, args ...interface{}) *Error {
	return Errorf(ErrCollision, format, args...)
}

func undefinedErrorf(format string, args ...interface{}) *Error {
	return Errorf(ErrUndefined, format, args...)
}

func internalErrorf(format string, args ...interface{}) *Error {
	return Errorf(ErrInternal, format, args...)
}

func dnuErrorf(receiver, selector string) *Error {
	return Errorf(ErrDoesNotUnderstand, "%s does not understand %q", receiver, selector)
}
