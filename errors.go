package sstable

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrNotFound is returned by Reader.Get when the requested key is absent
// from the table.
var ErrNotFound = errors.New("sstable: not found")

// Kind classifies an Error returned by this package.
type Kind int

// Recognized error kinds, per the documented error taxonomy.
const (
	// InvalidArgument signals misuse of the API: out-of-order Add, a
	// duplicate key, or use of a Builder after Finish.
	InvalidArgument Kind = iota + 1
	// Corruption signals malformed on-disk data: bad footer magic, a
	// failed checksum, a truncated block, a malformed varint, or a
	// filter whose offsets fall outside the filter block.
	Corruption
	// IO signals a failure from the underlying sink or source.
	IO
	// Unsupported signals a recognized-but-unimplemented feature, such
	// as an unknown compression code.
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case Corruption:
		return "corruption"
	case IO:
		return "io"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the concrete error type produced by this package. It carries a
// Kind so callers can branch with errors.Is/errors.As without parsing
// messages.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sstable: %s", e.Kind)
	}
	return fmt.Sprintf("sstable: %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As/errors.Unwrap.
func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &Error{Kind: sstable.Corruption}) style checks
// to match solely on Kind, ignoring the wrapped cause.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// newError builds an *Error with a formatted message and no further cause.
func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// wrapIOErr preserves the original sink/source error (and its stack, via
// pkg/errors) inside an IO-kind Error.
func wrapIOErr(err error, context string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: IO, Err: pkgerrors.Wrap(err, context)}
}

// corruptf builds a Corruption-kind error with a formatted message.
func corruptf(format string, args ...interface{}) *Error {
	return newError(Corruption, format, args...)
}
