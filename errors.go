package aresdriver

import (
	"errors"
	"fmt"
)

// Kind classifies the errors this driver can hand back to callers.
type Kind int

const (
	// Unknown wraps a stub failure that isn't one of the other kinds.
	Unknown Kind = iota
	// InvalidArgument covers unparseable names, ports or server overrides.
	InvalidArgument
	// DeadlineExceeded means the per-request timer fired before completion.
	DeadlineExceeded
	// Cancelled means the caller invoked Cancel; never user-visible.
	Cancelled
	// NotFound means the stub definitively reported no such record.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case Cancelled:
		return "Cancelled"
	case NotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across this package's public surface.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped stub or lower-level error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, &Error{Kind: DeadlineExceeded}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, msg string, wrapped error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: wrapped}
}

func invalidArgument(msg string) *Error {
	return newError(InvalidArgument, msg, nil)
}

func cancelledError() *Error {
	return newError(Cancelled, "request cancelled", nil)
}

func deadlineExceeded() *Error {
	return newError(DeadlineExceeded, "query timer fired before completion", nil)
}

// wrapStubError annotates a raw stub failure with the query type and name
// it was raised for, per spec.md §7 ("annotated with qtype, name, and the
// stub's error string").
func wrapStubError(qtype, name string, err error) *Error {
	return newError(Unknown, fmt.Sprintf("qtype=%s name=%s", qtype, name), err)
}

// classifyStubError is wrapStubError, except a stub failure matching
// ErrStubNotFound (the stub reporting "no such record" definitively) is
// classified as NotFound instead of Unknown, per spec.md §7's SRV/TXT row.
func classifyStubError(qtype, name string, err error) *Error {
	if errors.Is(err, ErrStubNotFound) {
		return newError(NotFound, fmt.Sprintf("qtype=%s name=%s", qtype, name), err)
	}
	return wrapStubError(qtype, name, err)
}
