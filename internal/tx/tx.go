// Package tx implements the TX hot loop: draining an input channel of
// sample chunks into a ring, substituting zeros under stall to keep
// the stream continuous, and publishing periodic stats.
package tx

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/events"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/sdrerr"
)

const (
	idleSleep   = time.Millisecond
	statsPeriod = 200 * time.Millisecond
	doneGrace   = 500 * time.Millisecond
)

// Input is one TX chunk: exactly one of Complex or Real is set. Real
// chunks are widened to complex with a zero imaginary part on the
// wire.
type Input struct {
	Complex *ring.Chunk
	Real    *ring.RealChunk
}

// Liveness is the subset of *supervisor.Supervisor the loop needs.
type Liveness interface {
	Alive() bool
	ExitedChan() <-chan struct{}
	ExitCode() int
}

// processExitedReason maps the external process's exit code onto §4.3's
// error/notice split: a nonzero exit is fatal, a zero exit is a notice.
func processExitedReason(live Liveness) (events.TerminationReason, error) {
	if live.ExitCode() == 0 {
		return events.TerminationProcessExitedClean, sdrerr.ErrProcessExitedClean
	}
	return events.TerminationProcessExitedEarly, sdrerr.ErrProcessExitedEarly
}

// Run drains in into r until in is closed (the final chunk is flushed
// and writer_done is set), the process dies, or ctx is canceled.
// channels is the ring's num_channels.
func Run(ctx context.Context, r *ring.Ring, live Liveness, channels int, in <-chan Input, warnings chan<- events.Warning, stats chan<- events.TxStats, log *zap.SugaredLogger) events.TerminationReason {
	lastErrorCount := r.LoadErrorCount()
	lastStallCount := r.LoadBufferStallCount()
	writeIndex := r.LoadWriteIndexAcquire()

	var last *Input
	closed := false

	emitWarning := func(w events.Warning) {
		if warnings == nil {
			return
		}
		select {
		case warnings <- w:
		default:
			log.Warnw("dropping tx warning, channel full", "kind", w.Kind.String())
		}
	}

	statsTicker := time.NewTicker(statsPeriod)
	defer statsTicker.Stop()
	publishStats := func() {
		if stats == nil {
			return
		}
		snap := events.TxStats{
			WriteIndex:       r.LoadWriteIndexAcquire(),
			ReadIndex:        r.LoadReadIndexAcquire(),
			ErrorCount:       r.LoadErrorCount(),
			BufferStallCount: r.LoadBufferStallCount(),
			At:               time.Now(),
		}
		select {
		case stats <- snap:
		default:
		}
	}

	checkCounters := func() {
		if ec := r.LoadErrorCount(); ec != lastErrorCount {
			emitWarning(events.Warning{Kind: events.WarningUnderflow, Delta: ec - lastErrorCount, At: time.Now()})
			lastErrorCount = ec
		}
		if sc := r.LoadBufferStallCount(); sc != lastStallCount {
			emitWarning(events.Warning{Kind: events.WarningBufferStall, Delta: sc - lastStallCount, At: time.Now()})
			lastStallCount = sc
		}
	}

	write := func(item *Input) {
		slot := r.SlotBytes(writeIndex)
		if item.Complex != nil {
			ring.EncodeComplexSlot(item.Complex, channels, slot)
		} else {
			ring.EncodeRealSlot(item.Real, channels, slot)
		}
		writeIndex++
		r.StoreWriteIndexRelease(writeIndex)
	}

	// writeZero fills the next slot with zeros: a buffer stall
	// substitutes silence rather than repeating stale samples.
	writeZero := func() {
		clear(r.SlotBytes(writeIndex))
		writeIndex++
		r.StoreWriteIndexRelease(writeIndex)
	}

	for {
		checkCounters()
		select {
		case <-statsTicker.C:
			publishStats()
		default:
		}

		if closed {
			return events.TerminationWriterDone
		}

		if !r.CanWrite() {
			select {
			case <-ctx.Done():
				r.SetWriterDone()
				time.Sleep(doneGrace)
				return events.TerminationInterrupted
			case <-live.ExitedChan():
				reason, exitErr := processExitedReason(live)
				emitWarning(events.Warning{Kind: events.WarningProcessExited, Err: exitErr, At: time.Now()})
				return reason
			case <-time.After(idleSleep):
			}
			continue
		}

		select {
		case v, ok := <-in:
			if !ok {
				if last == nil {
					r.SetWriterDone()
					time.Sleep(doneGrace)
					return events.TerminationPipeClosed
				}
				r.SetWriterDone()
				time.Sleep(doneGrace)
				closed = true
				continue
			}
			last = &v
			write(last)
		case <-ctx.Done():
			r.SetWriterDone()
			time.Sleep(doneGrace)
			return events.TerminationInterrupted
		case <-live.ExitedChan():
			reason, exitErr := processExitedReason(live)
			emitWarning(events.Warning{Kind: events.WarningProcessExited, Err: exitErr, At: time.Now()})
			return reason
		case <-time.After(idleSleep):
			if last != nil {
				r.AddBufferStallCount(1)
				writeZero()
			}
		}
	}
}
