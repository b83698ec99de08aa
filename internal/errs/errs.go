// Package errs defines the closed set of error kinds the storage engine
// surfaces at its boundary (spec.md §7).
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of error categories the core can return.
// Callers should use errors.As to recover a *Error and switch on Kind
// rather than matching message strings.
type Kind int

const (
	// KindUnknown is never returned; it is the zero value guard.
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalidID
	KindInvalidTransition
	KindInvalidActor
	KindProtectedField
	KindIntegrity
	KindLockContention
	KindIO
	KindConfig
	KindParentMissing
	KindPathIsFile
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidID:
		return "InvalidId"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindInvalidActor:
		return "InvalidActor"
	case KindProtectedField:
		return "ProtectedField"
	case KindIntegrity:
		return "IntegrityError"
	case KindLockContention:
		return "LockContention"
	case KindIO:
		return "IoError"
	case KindConfig:
		return "ConfigError"
	case KindParentMissing:
		return "ParentMissing"
	case KindPathIsFile:
		return "PathIsFile"
	default:
		return "Unknown"
	}
}

// Error is the single carrier type for every error the core returns.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "store.WriteTaskEvent"
	Msg  string
	Err  error // wrapped cause, optional
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap constructs an *Error that carries an underlying cause.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
