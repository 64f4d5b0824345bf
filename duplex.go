package sdrshm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/duplex"
	"github.com/sdrshm/sdrshm/internal/logging"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/supervisor"
)

// DuplexSession is a running duplex stream: one external process fed
// by and feeding two independent rings.
type DuplexSession struct {
	inner  *duplex.Session
	cancel context.CancelFunc
}

// StartDuplex spawns one external process configured by p, waits for
// it to publish both an RX and a TX ring, and returns a session
// exposing both directions. log may be nil.
func StartDuplex(ctx context.Context, p DuplexParams, log *zap.SugaredLogger) (*DuplexSession, error) {
	if log == nil {
		log = logging.Nop()
	}

	if err := ring.DeleteRing(p.RX.RingPath); err != nil {
		return nil, fmt.Errorf("sdrshm: start duplex: %w", err)
	}
	if err := ring.DeleteRing(p.TX.RingPath); err != nil {
		return nil, fmt.Errorf("sdrshm: start duplex: %w", err)
	}

	inv := supervisor.Invocation{
		Path:     binaryPathOr(p.BinaryPath, DefaultBinaryPath),
		Args:     composeDuplexArgs(p),
		Override: p.InvocationOverride,
	}
	logDir := p.LogDir
	if logDir == "" {
		logDir = "."
	}

	sup, err := supervisor.Start(inv, logDir, logNameFor("duplex", p.RX.RingPath), log)
	if err != nil {
		return nil, fmt.Errorf("sdrshm: start duplex: %w", err)
	}

	rxRing, err := sup.AwaitRing(ctx, p.RX.RingPath, uint16(p.Channels))
	if err != nil {
		sup.Close()
		return nil, fmt.Errorf("sdrshm: start duplex: await rx ring: %w", err)
	}
	txRing, err := sup.AwaitRing(ctx, p.TX.RingPath, uint16(p.Channels))
	if err != nil {
		rxRing.SyncAndUnmap()
		sup.Close()
		return nil, fmt.Errorf("sdrshm: start duplex: await tx ring: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)

	chunkCap := p.RX.ChunkChannelCapacity
	if chunkCap == 0 {
		chunkCap = defaultChunkChannelCapacity
	}
	warningCap := p.RX.WarningChannelCapacity
	if warningCap == 0 {
		warningCap = defaultWarningChannelCapacity
	}
	statsCap := p.TX.StatsCapacity
	if statsCap == 0 {
		statsCap = defaultStatsChannelCapacity
	}

	inner := duplex.New(sessCtx, sup, rxRing, txRing, p.Channels, p.Channels, chunkCap, warningCap, statsCap, log)

	return &DuplexSession{inner: inner, cancel: cancel}, nil
}

// Chunks returns the RX output stream, closed when the RX side
// terminates.
func (s *DuplexSession) Chunks() <-chan *Chunk { return s.inner.Chunks() }

// Input returns the TX input channel; send chunks to it and close it
// to end the TX side cleanly.
func (s *DuplexSession) Input() chan<- TxInput { return s.inner.Input() }

// Warnings returns the warning stream shared by both directions.
func (s *DuplexSession) Warnings() <-chan Warning { return s.inner.Warnings() }

// Stats returns the TX stats stream.
func (s *DuplexSession) Stats() <-chan TxStats { return s.inner.Stats() }

// Wait blocks until both hot loops terminate and reports why each did.
func (s *DuplexSession) Wait() (rxReason, txReason TerminationReason) {
	return s.inner.Wait()
}

// Close cancels the session, waits for both loops to exit, terminates
// the external process, and unmaps and deletes both rings (RX before
// TX).
func (s *DuplexSession) Close() error {
	s.cancel()
	return s.inner.Close()
}
