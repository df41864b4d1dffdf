// Package apperrors defines the error taxonomy shared by the store and the
// repositories. Every typed rejection is an *Error whose Kind tells callers
// whether the fault lies with the input, the store connection, or the current
// stored state.
package apperrors

import "errors"

// Kind classifies an Error.
type Kind int

const (
	// KindUnknown marks errors that carry no classification.
	KindUnknown Kind = iota
	// KindArgument means the caller-supplied input is malformed or incomplete.
	KindArgument
	// KindDatabase means the store is not connected or could not be reached.
	KindDatabase
	// KindSemantics means well-formed input violates a domain invariant.
	KindSemantics
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "ArgumentError"
	case KindDatabase:
		return "DatabaseError"
	case KindSemantics:
		return "SemanticsError"
	default:
		return "UnknownError"
	}
}

// Error is a classified failure with an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty message
// matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

var (
	// ErrArgument matches every argument error.
	ErrArgument = &Error{Kind: KindArgument}
	// ErrDatabase matches every database error.
	ErrDatabase = &Error{Kind: KindDatabase}
	// ErrSemantics matches every semantics error.
	ErrSemantics = &Error{Kind: KindSemantics}
)

// Argument creates an argument error.
func Argument(message string) *Error {
	return &Error{Kind: KindArgument, Message: message}
}

// Database creates a database error wrapping an optional cause.
func Database(message string, cause error) *Error {
	return &Error{Kind: KindDatabase, Message: message, Cause: cause}
}

// Semantics creates a semantics error.
func Semantics(message string) *Error {
	return &Error{Kind: KindSemantics, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
