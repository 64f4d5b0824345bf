package sdrshm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/logging"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/rx"
	"github.com/sdrshm/sdrshm/internal/supervisor"
)

// RXSession is a running RX stream: an external process feeding one
// ring, drained into Chunks.
type RXSession struct {
	sup *supervisor.Supervisor
	r   *ring.Ring

	chunks   <-chan *Chunk
	warnings <-chan Warning

	cancel     context.CancelFunc
	doneSignal chan struct{}
	reason     TerminationReason
}

// StartRX spawns the external process configured by p, waits for it to
// create and publish a well-formed ring, and returns a session
// streaming decoded chunks. log may be nil, in which case the session
// logs nowhere.
func StartRX(ctx context.Context, p RXParams, log *zap.SugaredLogger) (*RXSession, error) {
	if log == nil {
		log = logging.Nop()
	}

	if err := ring.DeleteRing(p.RingPath); err != nil {
		return nil, fmt.Errorf("sdrshm: start rx: %w", err)
	}

	inv := supervisor.Invocation{
		Path:     binaryPathOr(p.BinaryPath, DefaultBinaryPath),
		Args:     composeRXArgs(p),
		Override: p.InvocationOverride,
	}
	logDir := p.LogDir
	if logDir == "" {
		logDir = "."
	}

	sup, err := supervisor.Start(inv, logDir, logNameFor("rx", p.RingPath), log)
	if err != nil {
		return nil, fmt.Errorf("sdrshm: start rx: %w", err)
	}

	r, err := sup.AwaitRing(ctx, p.RingPath, uint16(p.Channels))
	if err != nil {
		sup.Close()
		return nil, fmt.Errorf("sdrshm: start rx: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)

	chunkCap := p.ChunkChannelCapacity
	if chunkCap == 0 {
		chunkCap = defaultChunkChannelCapacity
	}
	out := make(chan *ring.Chunk, chunkCap)

	warningCap := p.WarningChannelCapacity
	if warningCap == 0 {
		warningCap = defaultWarningChannelCapacity
	}
	warnings := make(chan Warning, warningCap)

	s := &RXSession{
		sup:        sup,
		r:          r,
		chunks:     out,
		warnings:   warnings,
		cancel:     cancel,
		doneSignal: make(chan struct{}),
	}

	go func() {
		s.reason = rx.Run(sessCtx, r, sup, p.Channels, chunkCap+2, out, warnings, log)
		close(out)
		close(s.doneSignal)
	}()

	return s, nil
}

// Chunks returns the decoded sample stream, closed when the session
// terminates.
func (s *RXSession) Chunks() <-chan *Chunk { return s.chunks }

// Warnings returns the out-of-band warning stream.
func (s *RXSession) Warnings() <-chan Warning { return s.warnings }

// Wait blocks until the RX loop terminates and reports why. It may be
// called any number of times, from any number of goroutines.
func (s *RXSession) Wait() TerminationReason {
	<-s.doneSignal
	return s.reason
}

// Close cancels the session, waits for its loop to exit, terminates
// the external process, and then unmaps and deletes the ring.
func (s *RXSession) Close() error {
	s.cancel()
	s.Wait()

	closeErr := s.sup.Close()
	if err := s.r.SyncAndUnmap(); err != nil && closeErr == nil {
		closeErr = err
	}
	// The external process created this ring and has now exited;
	// nothing else can be reading from it, so the host is responsible
	// for removing the file regardless of which side created it.
	ring.DeleteRing(s.r.Path())
	return closeErr
}
