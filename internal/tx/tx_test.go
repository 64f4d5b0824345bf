package tx

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

func TestRunWritesChunksAndSetsWriterDoneOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 8, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	in := make(chan Input, 1)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, in, nil, nil, log)
	}()

	for i := 0; i < 3; i++ {
		chunk := &ring.Chunk{Rows: 4, Cols: 1, Data: make([]ring.IQ, 4)}
		for s := 0; s < 4; s++ {
			chunk.Set(s, 0, ring.IQ{Re: int16(i), Im: 0})
		}
		in <- Input{Complex: chunk}
	}

	assert.Eventually(t, func() bool {
		return w.LoadWriteIndexAcquire() >= 3
	}, time.Second, time.Millisecond)

	close(in)

	select {
	case reason := <-done:
		assert.Equal(t, events.TerminationWriterDone, reason)
	case <-time.After(2 * time.Second):
		t.Fatal("expected tx loop to terminate after input closes")
	}
	assert.True(t, w.IsWriterDone())
}

func TestRunWritesZerosOnStall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 64, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	in := make(chan Input, 1)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, in, nil, nil, log)
	}()

	chunk := &ring.Chunk{Rows: 4, Cols: 1, Data: make([]ring.IQ, 4)}
	chunk.Set(0, 0, ring.IQ{Re: 42, Im: 0})
	in <- Input{Complex: chunk}

	assert.Eventually(t, func() bool {
		return w.LoadBufferStallCount() > 0
	}, time.Second, time.Millisecond)

	// The slot written during the stall (the one right after the real
	// chunk's) must be all zeros, not a repeat of chunk's samples.
	stalledSlot := w.SlotBytes(1)
	for _, b := range stalledSlot {
		assert.Zero(t, b)
	}

	close(in)
	<-done
}

func TestRunTerminatesOnProcessExit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 4, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	live.exitCode = 1
	in := make(chan Input)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, in, warnings, nil, log)
	}()

	close(live.exited)

	select {
	case reason := <-done:
		assert.Equal(t, events.TerminationProcessExitedEarly, reason)
	case <-time.After(time.Second):
		t.Fatal("expected tx loop to terminate on process exit")
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
	in := make(chan Input)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, in, nil, nil, log)
	}()

	close(live.exited)

	select {
	case reason := <-done:
		assert.Equal(t, events.TerminationProcessExitedClean, reason)
	case <-time.After(time.Second):
		t.Fatal("expected tx loop to terminate on process exit")
	}
}

func TestRunReportsUnderflowWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ring")
	w, err := ring.Create(path, 4, 4, 1)
	require.NoError(t, err)
	defer w.SyncAndUnmap()

	live := newFakeLiveness()
	in := make(chan Input)
	warnings := make(chan events.Warning, 4)
	log := zaptest.NewLogger(t).Sugar()

	done := make(chan events.TerminationReason, 1)
	go func() {
		done <- Run(context.Background(), w, live, 1, in, warnings, nil, log)
	}()

	w.AddErrorCount(2)

	select {
	case warn := <-warnings:
		assert.Equal(t, events.WarningUnderflow, warn.Kind)
		assert.EqualValues(t, 2, warn.Delta)
	case <-time.After(time.Second):
		t.Fatal("expected underflow warning")
	}

	close(live.exited)
	<-done
}
