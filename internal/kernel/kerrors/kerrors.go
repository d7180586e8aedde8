// Package kerrors implements a closed error taxonomy: every kernel
// operation returns one of a fixed set of error kinds, with success as a
// distinguished member (the zero Kind). The wrapping style (Op + Kind +
// underlying cause, with Cause()/Unwrap() so errors.Is/As work against the
// Kind) follows the convention rclone's fs/fserrors package uses on top of
// github.com/pkg/errors.
package kerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a member of the closed error taxonomy. Names are indicative, not
// literal; values are kernel-internal and never serialized across a wire
// boundary.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidArgument
	KindNoMemory
	KindNoSuchEntry
	KindAlreadyExists
	KindBusy
	KindPermissionDenied
	KindNoSpace
	KindIOError
	KindTimeout
	KindInterrupted
	KindNotSupported
	KindRange
	KindOverflow
	KindNameTooLong
	KindBadFileDescriptor
	KindNotADirectory
	KindIsADirectory
	KindCrossDeviceLink
	KindBrokenPipe
	KindConnectionReset
	KindConnectionRefused
	KindConnectionAborted
	KindNotConnected

	// KindPanic is the dedicated fatal marker: invariant violations inside
	// the kernel (bad resource tag, double-free with mismatched purpose,
	// unreachable dispatch). The syscall dispatcher produces it when it
	// recovers a panic inside a handler, and returns it to that syscall's
	// submitter as the call's error; nothing rejects a handler that
	// returns it directly.
	KindPanic
)

var names = map[Kind]string{
	KindNone:              "success",
	KindInvalidArgument:   "invalid-argument",
	KindNoMemory:          "no-memory",
	KindNoSuchEntry:       "no-such-entry",
	KindAlreadyExists:     "already-exists",
	KindBusy:              "busy",
	KindPermissionDenied:  "permission-denied",
	KindNoSpace:           "no-space",
	KindIOError:           "io-error",
	KindTimeout:           "timeout",
	KindInterrupted:       "interrupted",
	KindNotSupported:      "not-supported",
	KindRange:             "range",
	KindOverflow:          "overflow",
	KindNameTooLong:       "name-too-long",
	KindBadFileDescriptor: "bad-file-descriptor",
	KindNotADirectory:     "not-a-directory",
	KindIsADirectory:      "is-a-directory",
	KindCrossDeviceLink:   "cross-device-link",
	KindBrokenPipe:        "broken-pipe",
	KindConnectionReset:   "connection-reset",
	KindConnectionRefused: "connection-refused",
	KindConnectionAborted: "connection-aborted",
	KindNotConnected:      "not-connected",
	KindPanic:             "panic",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the concrete error type every kernel operation returns (wrapped
// in a plain `error` so call sites can still use errors.Is/As against Kind
// and against the underlying cause).
type Error struct {
	Op   string // operation that failed, e.g. "vfs.Open"
	Kind Kind
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Cause unwraps to the underlying error, mirroring github.com/pkg/errors'
// convention so existing Cause()-aware tooling keeps working.
func (e *Error) Cause() error { return e.Err }

// Unwrap supports the standard library's errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// New constructs a kernel Error with no wrapped cause.
func New(op string, kind Kind) error {
	if kind == KindNone {
		return nil
	}
	return &Error{Op: op, Kind: kind}
}

// Wrap attaches op and kind to an existing cause. If err is nil, Wrap
// returns nil (the common "if err != nil { return kerrors.Wrap(...) }"
// idiom rclone uses throughout backend/local).
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: errors.WithStack(err)}
}

// KindOf extracts the Kind from err, returning KindIOError for an
// unclassified non-nil error and KindNone for nil -- every caller in this
// kernel that needs to branch on the taxonomy goes through this rather than
// type-asserting *Error directly, so wrapped/chained errors still resolve.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return KindIOError
}

// Is reports whether err's Kind equals k, looking through wrapping.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
