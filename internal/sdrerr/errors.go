// Package sdrerr defines the error taxonomy shared across the
// supervisor, ring, and task packages, so callers can use errors.Is
// against a stable set of sentinels regardless of which package
// produced the wrapped error.
package sdrerr

import "errors"

var (
	// ErrRingAbsent means the ring file does not exist at the expected path.
	ErrRingAbsent = errors.New("ring: file absent")

	// ErrRingTooSmall means the mapped region is smaller than the header,
	// or than the slot storage the header describes.
	ErrRingTooSmall = errors.New("ring: file too small")

	// ErrRingMalformed means header fields violate the ring's invariants.
	ErrRingMalformed = errors.New("ring: malformed header")

	// ErrChannelMismatch means the observed num_channels does not match
	// what the caller requested.
	ErrChannelMismatch = errors.New("ring: channel count mismatch")

	// ErrOpenTimeout means the 10s wall-clock bound elapsed without a
	// valid ring appearing.
	ErrOpenTimeout = errors.New("supervisor: timed out waiting for ring")

	// ErrProcessFailedToStart means the external process exited before
	// the ring became usable.
	ErrProcessFailedToStart = errors.New("supervisor: process failed to start")

	// ErrProcessExitedEarly means the external process exited during
	// streaming with a nonzero status.
	ErrProcessExitedEarly = errors.New("supervisor: process exited early")

	// ErrProcessExitedClean is a non-fatal notice: zero-status exit
	// observed before writer_done was set.
	ErrProcessExitedClean = errors.New("supervisor: process exited cleanly before writer_done")
)

// ProcessStartError wraps ErrProcessFailedToStart with the captured
// tail of the external process's log file, so callers can surface the
// failure reason without re-opening the log themselves.
type ProcessStartError struct {
	LogTail string
	Err     error
}

func (e *ProcessStartError) Error() string {
	if e.LogTail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.LogTail
}

func (e *ProcessStartError) Unwrap() error {
	return e.Err
}
