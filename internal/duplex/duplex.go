// Package duplex runs one external process against two rings — one RX,
// one TX — coordinating their independent RX and TX hot loops and the
// single process's lifecycle between them.
package duplex

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sdrshm/sdrshm/internal/events"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/rx"
	"github.com/sdrshm/sdrshm/internal/supervisor"
	"github.com/sdrshm/sdrshm/internal/tx"
)

// Session owns both rings and the shared supervisor for a duplex run.
type Session struct {
	sup   *supervisor.Supervisor
	rxRing *ring.Ring
	txRing *ring.Ring

	rxChannels int
	txChannels int

	out      chan *ring.Chunk
	in       chan tx.Input
	warnings chan events.Warning
	stats    chan events.TxStats

	log *zap.SugaredLogger

	wg         sync.WaitGroup
	rxReason   events.TerminationReason
	txReason   events.TerminationReason
	closeOnce  sync.Once
}

// New pairs an already-awaited RX ring and TX ring behind one
// supervisor and starts both hot loops. Callers obtain sup, rxRing,
// and txRing via supervisor.Start and two supervisor.AwaitRing calls
// against the same supervisor (spec.md §4.5: one process, two rings).
func New(ctx context.Context, sup *supervisor.Supervisor, rxRing, txRing *ring.Ring, rxChannels, txChannels, chunkCapacity, warningCapacity, statsCapacity int, log *zap.SugaredLogger) *Session {
	s := &Session{
		sup:        sup,
		rxRing:     rxRing,
		txRing:     txRing,
		rxChannels: rxChannels,
		txChannels: txChannels,
		out:        make(chan *ring.Chunk, chunkCapacity),
		in:         make(chan tx.Input, chunkCapacity),
		warnings:   make(chan events.Warning, warningCapacity),
		stats:      make(chan events.TxStats, statsCapacity),
		log:        log,
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.rxReason = rx.Run(ctx, s.rxRing, s.sup, s.rxChannels, chunkCapacity+2, s.out, s.warnings, log)
		close(s.out)
	}()
	go func() {
		defer s.wg.Done()
		s.txReason = tx.Run(ctx, s.txRing, s.sup, s.txChannels, s.in, s.warnings, s.stats, log)
	}()

	return s
}

// Chunks returns the RX output stream. It is closed when the RX loop
// terminates.
func (s *Session) Chunks() <-chan *ring.Chunk { return s.out }

// Input returns the TX input channel; callers send chunks to it and
// close it to end the TX side cleanly.
func (s *Session) Input() chan<- tx.Input { return s.in }

// Warnings returns the shared warning channel for both loops.
func (s *Session) Warnings() <-chan events.Warning { return s.warnings }

// Stats returns the TX stats channel.
func (s *Session) Stats() <-chan events.TxStats { return s.stats }

// Wait blocks until both hot loops have terminated and reports why.
func (s *Session) Wait() (rxReason, txReason events.TerminationReason) {
	s.wg.Wait()
	return s.rxReason, s.txReason
}

// Close tears the session down: waits for both loops, terminates the
// external process exactly once, and unmaps and deletes both rings.
// Per spec.md's ordering guarantee, the RX ring is unmapped and
// deleted first (its file can be safely reused as soon as the reader
// is done with it), and the TX ring is unmapped and deleted after.
// When the TX loop ended because its input closed or ctx was
// canceled, it has already set writer_done and slept through the
// grace period; when it ended because the process exited, it has not
// set writer_done.
func (s *Session) Close() error {
	s.wg.Wait()

	var closeErr error
	s.closeOnce.Do(func() {
		closeErr = s.sup.Close()

		if err := s.rxRing.SyncAndUnmap(); err != nil && closeErr == nil {
			closeErr = err
		}
		ring.DeleteRing(s.rxRing.Path())

		if err := s.txRing.SyncAndUnmap(); err != nil && closeErr == nil {
			closeErr = err
		}
		ring.DeleteRing(s.txRing.Path())
	})
	return closeErr
}
