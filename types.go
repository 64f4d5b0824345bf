package sdrshm

import (
	"github.com/sdrshm/sdrshm/internal/events"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/sdrerr"
	"github.com/sdrshm/sdrshm/internal/tx"
)

// Chunk is a dense matrix of complex int16 IQ samples. RX publishes
// chunks shaped (channels, samples); TX and the bridge-reshaped RX
// stream use (samples, channels).
type Chunk = ring.Chunk

// RealChunk is a dense matrix of real int16 samples, accepted by
// StartTX as a convenience input shape.
type RealChunk = ring.RealChunk

// IQ is one complex int16 sample.
type IQ = ring.IQ

// NewChunk allocates a zeroed Chunk of the given shape.
func NewChunk(rows, cols int) *Chunk { return ring.NewChunk(rows, cols) }

// TxInput is one chunk offered to a TX session: exactly one of
// Complex or Real must be set.
type TxInput = tx.Input

// Warning is an out-of-band notice surfaced alongside a sample or
// stats stream.
type Warning = events.Warning

// WarningKind classifies a Warning.
type WarningKind = events.WarningKind

const (
	WarningOverflow      = events.WarningOverflow
	WarningUnderflow     = events.WarningUnderflow
	WarningBufferStall   = events.WarningBufferStall
	WarningProcessExited = events.WarningProcessExited
)

// TerminationReason explains why a session's hot loop stopped.
type TerminationReason = events.TerminationReason

const (
	TerminationWriterDone          = events.TerminationWriterDone
	TerminationPipeClosed          = events.TerminationPipeClosed
	TerminationProcessExitedEarly  = events.TerminationProcessExitedEarly
	TerminationProcessExitedClean  = events.TerminationProcessExitedClean
	TerminationInterrupted         = events.TerminationInterrupted
)

// TxStats is a point-in-time snapshot of a TX ring's counters.
type TxStats = events.TxStats

// Stats is a point-in-time snapshot of any ring's counters, returned
// by ReadStats.
type Stats = ring.Stats

// Sentinel errors, re-exported so callers can use errors.Is without
// importing the internal package that produced them.
var (
	ErrRingAbsent           = sdrerr.ErrRingAbsent
	ErrRingTooSmall         = sdrerr.ErrRingTooSmall
	ErrRingMalformed        = sdrerr.ErrRingMalformed
	ErrChannelMismatch      = sdrerr.ErrChannelMismatch
	ErrOpenTimeout          = sdrerr.ErrOpenTimeout
	ErrProcessFailedToStart = sdrerr.ErrProcessFailedToStart
	ErrProcessExitedEarly   = sdrerr.ErrProcessExitedEarly
	ErrProcessExitedClean   = sdrerr.ErrProcessExitedClean
)
