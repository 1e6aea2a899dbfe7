package vmeio

import (
	"errors"
	"fmt"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure of the access layer
type Kind int

const (
	// OpenFailure means the device node is missing, inaccessible,
	// or could not be described at open time
	OpenFailure Kind = iota + 1

	// AllocationFailure means the driver or host ran out of resources
	AllocationFailure

	// DriverCallFailure is any control, read, or write call the driver refused
	DriverCallFailure

	// InvalidArgument means a window, size, or width outside the supported domain
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case OpenFailure:
		return "open failure"
	case AllocationFailure:
		return "allocation failure"
	case DriverCallFailure:
		return "driver call failure"
	case InvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrOpen matches (via errors.Is) every OpenFailure
	ErrOpen = &Error{Kind: OpenFailure}

	// ErrAlloc matches every AllocationFailure
	ErrAlloc = &Error{Kind: AllocationFailure}

	// ErrDriver matches every DriverCallFailure
	ErrDriver = &Error{Kind: DriverCallFailure}

	// ErrInvalid matches every InvalidArgument
	ErrInvalid = &Error{Kind: InvalidArgument}

	// ErrDriverTimeout is returned by a Conn's ReadEvent when the driver's
	// own timeout elapsed with no interrupt.  WaitEvent never surfaces it.
	ErrDriverTimeout = errors.New("vmeio: driver timeout elapsed")

	// ErrClosed is wrapped when a closed handle is used
	ErrClosed = errors.New("vmeio: handle is closed")
)

// Error is the single error type produced by this package.
// Op names the failing operation, Err holds the cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Op == "" {
			return "vmeio: " + e.Kind.String()
		}
		return fmt.Sprintf("vmeio: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("vmeio: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match on Kind alone, so errors.Is(err, ErrInvalid) works for
// any InvalidArgument regardless of Op or cause
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

func invalid(op, format string, args ...interface{}) error {
	return &Error{Kind: InvalidArgument, Op: op, Err: pkgerrors.Errorf(format, args...)}
}

// driverErr classifies a failed collaborator call.  ENOMEM becomes an
// AllocationFailure, everything else a DriverCallFailure.
func driverErr(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := DriverCallFailure
	if errors.Is(err, syscall.ENOMEM) {
		kind = AllocationFailure
	}
	return &Error{Kind: kind, Op: op, Err: pkgerrors.WithStack(err)}
}

// KindOf returns the Kind of err, or zero if err did not come from this package
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
