package sdrshm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/logging"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/supervisor"
	"github.com/sdrshm/sdrshm/internal/tx"
)

// TXSession is a running TX stream: an external process draining one
// ring that this process feeds via Send.
type TXSession struct {
	sup *supervisor.Supervisor
	r   *ring.Ring

	in       chan TxInput
	warnings <-chan Warning
	stats    <-chan TxStats

	cancel     context.CancelFunc
	doneSignal chan struct{}
	reason     TerminationReason
}

// StartTX spawns the external process configured by p, waits for it
// to create and publish a well-formed ring, and returns a session
// accepting chunks to transmit. log may be nil.
func StartTX(ctx context.Context, p TXParams, log *zap.SugaredLogger) (*TXSession, error) {
	if log == nil {
		log = logging.Nop()
	}

	if err := ring.DeleteRing(p.RingPath); err != nil {
		return nil, fmt.Errorf("sdrshm: start tx: %w", err)
	}

	inv := supervisor.Invocation{
		Path:     binaryPathOr(p.BinaryPath, DefaultBinaryPath),
		Args:     composeTXArgs(p),
		Override: p.InvocationOverride,
	}
	logDir := p.LogDir
	if logDir == "" {
		logDir = "."
	}

	sup, err := supervisor.Start(inv, logDir, logNameFor("tx", p.RingPath), log)
	if err != nil {
		return nil, fmt.Errorf("sdrshm: start tx: %w", err)
	}

	r, err := sup.AwaitRing(ctx, p.RingPath, uint16(p.Channels))
	if err != nil {
		sup.Close()
		return nil, fmt.Errorf("sdrshm: start tx: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)

	warningCap := p.WarningCapacity
	if warningCap == 0 {
		warningCap = defaultWarningChannelCapacity
	}
	warnings := make(chan Warning, warningCap)

	statsCap := p.StatsCapacity
	if statsCap == 0 {
		statsCap = defaultStatsChannelCapacity
	}
	stats := make(chan TxStats, statsCap)

	in := make(chan TxInput)

	s := &TXSession{
		sup:        sup,
		r:          r,
		in:         in,
		warnings:   warnings,
		stats:      stats,
		cancel:     cancel,
		doneSignal: make(chan struct{}),
	}

	go func() {
		s.reason = tx.Run(sessCtx, r, sup, p.Channels, in, warnings, stats, log)
		close(s.doneSignal)
	}()

	return s, nil
}

// Send offers a chunk for transmission, blocking until the hot loop
// accepts it, the context is canceled, or the session has already
// terminated. ok is false if the session ended before the chunk could
// be accepted.
func (s *TXSession) Send(ctx context.Context, input TxInput) (ok bool) {
	select {
	case s.in <- input:
		return true
	case <-ctx.Done():
		return false
	case <-s.doneSignal:
		return false
	}
}

// Finish closes the input stream, signalling a clean end of
// transmission; the TX loop flushes its last chunk and sets
// writer_done.
func (s *TXSession) Finish() {
	close(s.in)
}

// Warnings returns the out-of-band warning stream.
func (s *TXSession) Warnings() <-chan Warning { return s.warnings }

// Stats returns the periodic TX stats stream.
func (s *TXSession) Stats() <-chan TxStats { return s.stats }

// Wait blocks until the TX loop terminates and reports why. It may be
// called any number of times, from any number of goroutines.
func (s *TXSession) Wait() TerminationReason {
	<-s.doneSignal
	return s.reason
}

// Close cancels the session, waits for its loop to exit, terminates
// the external process, and then unmaps and deletes the ring.
func (s *TXSession) Close() error {
	s.cancel()
	s.Wait()

	closeErr := s.sup.Close()
	if err := s.r.SyncAndUnmap(); err != nil && closeErr == nil {
		closeErr = err
	}
	// The external process created this ring and has now exited; the
	// host removes the file regardless of which side created it.
	ring.DeleteRing(s.r.Path())
	return closeErr
}
