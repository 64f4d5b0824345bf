package rx

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sdrshm/sdrshm/internal/events"
	"github.com/sdrshm/sdrshm/internal/ring"
	"github.com/sdrshm/sdrshm/internal/sdrerr"
)

type fakeLiveness struct {
	exited   chan struct{}
	exitCode int
}

func newFakeLiveness() *fakeLiveness { return &fakeLiveness{exited: make(chan struct{})} }

func (f *fakeLiveness) Alive() bool {
	select {
	case <-f.exited:
		return false
	default:
		return true
	}
}

func (f *fakeLiveness) ExitedChan() <-chan struct{} { return f.exited }
func (f *fakeLiveness) ExitCode() int               { return f.exitCode }

func TestRunDrainsUntilWriterDone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 8, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	out := make(chan *ring.Chunk, 1)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, 3, out, warnings, log)
	}()

	received := 0
	const total = 5
	for i := 0; i < total; i++ {
		src := &ring.Chunk{Rows: 4, Cols: 1, Data: make([]ring.IQ, 4)}
		for s := 0; s < 4; s++ {
			src.Set(s, 0, ring.IQ{Re: int16(i), Im: int16(s)})
		}
		slot := w.SlotBytes(w.LoadWriteIndexAcquire())
		ring.EncodeComplexSlot(src, 1, slot)
		w.StoreWriteIndexRelease(w.LoadWriteIndexAcquire() + 1)

		chunk := <-out
		assert.EqualValues(t, i, chunk.At(0, 0).Re)
		received++
	}
	assert.Equal(t, total, received)

	w.SetWriterDone()
	reason := <-done
	assert.Equal(t, events.TerminationWriterDone, reason)
}

func TestRunReportsOverflowWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 4, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	out := make(chan *ring.Chunk, 4)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, 6, out, warnings, log)
	}()

	w.AddErrorCount(3)

	select {
	case warn := <-warnings:
		assert.Equal(t, events.WarningOverflow, warn.Kind)
		assert.EqualValues(t, 3, warn.Delta)
	case <-time.After(time.Second):
		t.Fatal("expected overflow warning")
	}

	w.SetWriterDone()
	<-done
}

func TestRunTerminatesOnProcessExit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 4, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	live.exitCode = 1
	out := make(chan *ring.Chunk, 4)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, 6, out, warnings, log)
	}()

	close(live.exited)

	select {
	case reason := <-done:
		assert.Equal(t, events.TerminationProcessExitedEarly, reason)
	case <-time.After(time.Second):
		t.Fatal("expected rx loop to terminate on process exit")
	}

	select {
	case warn := <-warnings:
		assert.Equal(t, events.WarningProcessExited, warn.Kind)
		assert.ErrorIs(t, warn.Err, sdrerr.ErrProcessExitedEarly)
	default:
		t.Fatal("expected process-exited warning")
	}
}

func TestRunTerminatesOnProcessExitClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 4, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	out := make(chan *ring.Chunk, 4)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, 6, out, warnings, log)
	}()

	close(live.exited)

	select {
	case reason := <-done:
		assert.Equal(t, events.TerminationProcessExitedClean, reason)
	case <-time.After(time.Second):
		t.Fatal("expected rx loop to terminate on process exit")
	}
}

func TestRunTerminatesOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 4, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	out := make(chan *ring.Chunk)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(ctx, w, live, 1, 6, out, warnings, log)
	}()

	// Publish one slot so the loop is parked trying to send on a
	// full, unbuffered out channel, then cancel.
	src := &ring.Chunk{Rows: 4, Cols: 1, Data: make([]ring.IQ, 4)}
	slot := w.SlotBytes(0)
	ring.EncodeComplexSlot(src, 1, slot)
	w.StoreWriteIndexRelease(1)

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case reason := <-done:
		assert.Equal(t, events.TerminationInterrupted, reason)
	case <-time.After(time.Second):
		t.Fatal("expected rx loop to terminate on cancellation")
	}
}
