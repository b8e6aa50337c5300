package evring

import (
	"github.com/brickingsoft/errors"
)

var (
	// ErrSubmissionExhausted is returned when the ring has no free
	// submission slot for a new operation.
	ErrSubmissionExhausted = errors.Define("evring: no submission queue entry available")
	// ErrWaitTimeout is reported by the ring driver when a completion wait
	// elapses with nothing to report. The run loop treats it as "nothing
	// happened this tick", not as a failure.
	ErrWaitTimeout = errors.Define("evring: wait for completion timed out")
	// ErrClosed is returned by submission methods called after the loop
	// has released its ring.
	ErrClosed = errors.Define("evring: event loop closed")
	// ErrBadRange is returned by Buffer.Slice when the requested range
	// does not fit inside the buffer's current view.
	ErrBadRange = errors.Define("evring: slice out of range")
)

// setupError wraps a synchronous preparation failure (socket/bind/listen,
// ring init, ring submit) with the name of the operation that failed, per
// spec §7.1. Submission-slot exhaustion is reported as
// ErrSubmissionExhausted instead.
func setupError(operation string, cause error) error {
	return errors.New("evring: setup failed", errors.WithMeta("operation", operation), errors.WithWrap(cause))
}

// waitError wraps a ring-wait failure other than a timeout, per spec §7.3.
func waitError(cause error) error {
	return errors.New("evring: ring wait failed", errors.WithWrap(cause))
}
