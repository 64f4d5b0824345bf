// Package rx implements the RX hot loop: draining published slots off
// a ring into a channel of sample chunks, watching for overflow and
// for the four ways a session can end.
package rx

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/events"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/sdrerr"
)

// idleSleep is how long the loop backs off when no slot is ready yet.
const idleSleep = time.Millisecond

// Liveness is the subset of *supervisor.Supervisor the loop needs,
// kept as an interface so tests can fake process death without
// spawning a real one.
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

// Run drains r until the writer finishes, the process dies, or ctx is
// canceled. It never returns TerminationPipeClosed: a consumer that
// stops receiving from out holds the loop at its send until the
// process dies or ctx is canceled. channels is the ring's
// num_channels; chunkCapacity sizes the pool of chunks rotated into
// out, which should match the consumer's channel buffer plus headroom
// so a chunk is not overwritten while still held downstream.
func Run(ctx context.Context, r *ring.Ring, live Liveness, channels, chunkCapacity int, out chan<- *ring.Chunk, warnings chan<- events.Warning, log *zap.SugaredLogger) events.TerminationReason {
	samples := int(r.ChunkSize())
	pool := make([]*ring.Chunk, chunkCapacity)
	for i := range pool {
		pool[i] = ring.NewChunk(channels, samples)
	}

	lastErrorCount := r.LoadErrorCount()
	readIndex := r.LoadReadIndexAcquire()
	poolIdx := 0

	emitWarning := func(w events.Warning) {
		if warnings == nil {
			return
		}
		select {
		case warnings <- w:
		default:
			log.Warnw("dropping rx warning, channel full", "kind", w.Kind.String())
		}
	}

	for {
		if ec := r.LoadErrorCount(); ec != lastErrorCount {
			emitWarning(events.Warning{Kind: events.WarningOverflow, Delta: ec - lastErrorCount, At: timeNow()})
			lastErrorCount = ec
		}

		if r.CanRead() {
			chunk := pool[poolIdx]
			poolIdx = (poolIdx + 1) % len(pool)

			ring.DecodeSlot(r.SlotBytes(readIndex), channels, chunk)
			readIndex++
			r.StoreReadIndexRelease(readIndex)

			select {
			case out <- chunk:
			case <-ctx.Done():
				return events.TerminationInterrupted
			case <-live.ExitedChan():
				reason, exitErr := processExitedReason(live)
				emitWarning(events.Warning{Kind: events.WarningProcessExited, Err: exitErr, At: timeNow()})
				return reason
			}
			continue
		}

		if r.IsWriterDone() {
			// Drain any slots published between the writer_done
			// check above and the final read.
			if r.CanRead() {
				continue
			}
			return events.TerminationWriterDone
		}

		select {
		case <-ctx.Done():
			return events.TerminationInterrupted
		case <-live.ExitedChan():
			// A published-but-undrained slot still counts: give the
			// loop one more pass before declaring process death.
			if r.CanRead() {
				continue
			}
			reason, exitErr := processExitedReason(live)
			emitWarning(events.Warning{Kind: events.WarningProcessExited, Err: exitErr, At: timeNow()})
			return reason
		case <-time.After(idleSleep):
		}
	}
}

func timeNow() time.Time { return time.Now() }
