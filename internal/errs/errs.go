// Package errs defines the error kinds shared by every forpy-go package.
//
// Every error forpy-go returns is constructed with New, which pairs a Kind
// with a human-readable message. Callers should compare kinds with
// errors.Is against the Err* sentinels, not by inspecting Error() text.
package errs

import "fmt"

// Kind identifies which of the documented failure modes an Error represents.
type Kind int

const (
	// Empty signals a required tensor slot (X, Y, a node interval) is empty.
	Empty Kind = iota
	// Shape signals a row/col mismatch, a non-unit stride, or a zero dimension.
	Shape
	// InvalidParam signals a bad constructor argument (see the forests'
	// validate methods for which arguments this covers).
	InvalidParam
	// NotInitialized signals a call made before Fit, or a query against an
	// uninitialized regressor.
	NotInitialized
	// NoSolution signals a linear regressor could not find a unique fit for
	// its interval and has been configured not to fall back to a mean.
	NoSolution
	// Unsupported signals a feature outside the documented set (n_threads==0,
	// ...).
	Unsupported
	// Corruption signals a deserialization stream inconsistent with its
	// header or version.
	Corruption
	// Internal signals a broken invariant (e.g. a rank greater than the
	// input dimension). Always fatal; never expected in correct code.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Shape:
		return "shape"
	case InvalidParam:
		return "invalid_param"
	case NotInitialized:
		return "not_initialized"
	case NoSolution:
		return "no_solution"
	case Unsupported:
		return "unsupported"
	case Corruption:
		return "corruption"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by forpy-go's public APIs.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("forpy: %s: %s", e.Kind, e.Msg)
}

// Is reports whether target is an *Error of the same Kind, so that
// errors.Is(err, New(kind, "")) matches on kind alone; callers normally
// compare against the Err* sentinels below instead.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error carrying kind and a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// sentinels, one per Kind, used as errors.Is targets: errors.Is(err, errs.ErrShape)
var (
	ErrEmpty          = &Error{Kind: Empty, Msg: "empty"}
	ErrShape          = &Error{Kind: Shape, Msg: "shape"}
	ErrInvalidParam   = &Error{Kind: InvalidParam, Msg: "invalid_param"}
	ErrNotInitialized = &Error{Kind: NotInitialized, Msg: "not_initialized"}
	ErrNoSolution     = &Error{Kind: NoSolution, Msg: "no_solution"}
	ErrUnsupported    = &Error{Kind: Unsupported, Msg: "unsupported"}
	ErrCorruption     = &Error{Kind: Corruption, Msg: "corruption"}
	ErrInternal       = &Error{Kind: Internal, Msg: "internal"}
)
