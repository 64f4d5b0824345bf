package sdrshm

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sdrshm/sdrshm/internal/ring"
)

// mockRXProducer starts a background goroutine standing in for the
// external process: it creates the ring, publishes n chunks, then sets
// writer_done. The actual process is just `sleep`, kept alive for the
// supervisor to monitor; no real SDR or external binary is involved.
func mockRXProducer(t *testing.T, path string, channels, chunkSize, numSlots uint32, n int) {
	t.Helper()
	go func() {
		time.Sleep(20 * time.Millisecond)
		w, err := ring.Create(path, chunkSize, numSlots, uint16(channels))
		if err != nil {
			return
		}
		defer w.SyncAndUnmap()

		for i := 0; i < n; i++ {
			for !w.CanWrite() {
				time.Sleep(time.Millisecond)
			}
			idx := w.LoadWriteIndexAcquire()

			// EncodeComplexSlot wants (samples, channels); build it
			// directly in wire shape.
			wire := &ring.Chunk{Rows: int(chunkSize), Cols: int(channels), Data: make([]ring.IQ, int(chunkSize)*int(channels))}
			for s := 0; s < int(chunkSize); s++ {
				for c := 0; c < int(channels); c++ {
					wire.Set(s, c, ring.IQ{Re: int16(i), Im: int16(s)})
				}
			}
			ring.EncodeComplexSlot(wire, int(channels), w.SlotBytes(idx))
			w.StoreWriteIndexRelease(idx + 1)
		}
		w.SetWriterDone()
	}()
}

func TestStartRXEndToEndWithMockProducer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rx.ring")
	mockRXProducer(t, path, 1, 8, 4, 5)

	p := NewRXParams(1, path, WithRXInvocationOverride(func() *exec.Cmd {
		return exec.Command("sleep", "5")
	}))

	log := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := StartRX(ctx, p, log)
	require.NoError(t, err)
	defer sess.Close()

	received := 0
	for chunk := range sess.Chunks() {
		assert.EqualValues(t, received, chunk.At(0, 0).Re)
		received++
	}
	assert.Equal(t, 5, received)
	assert.Equal(t, TerminationWriterDone, sess.Wait())
}

func TestStartTXEndToEndWithMockConsumer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.ring")

	// Stand in for the consumer: create the ring, then drain and
	// record whatever the TX session publishes.
	received := make(chan ring.IQ, 16)
	go func() {
		time.Sleep(20 * time.Millisecond)
		r, err := ring.Create(path, 4, 8, 1)
		if err != nil {
			return
		}
		defer r.SyncAndUnmap()

		readIdx := uint64(0)
		for {
			if r.IsWriterDone() && !r.CanRead() {
				return
			}
			if !r.CanRead() {
				time.Sleep(time.Millisecond)
				continue
			}
			dst := ring.NewChunk(1, 4)
			ring.DecodeSlot(r.SlotBytes(readIdx), 1, dst)
			received <- dst.At(0, 0)
			readIdx++
			r.StoreReadIndexRelease(readIdx)
		}
	}()

	p := NewTXParams(path, WithTXInvocationOverride(func() *exec.Cmd {
		return exec.Command("sleep", "5")
	}))

	log := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := StartTX(ctx, p, log)
	require.NoError(t, err)
	defer sess.Close()

	chunk := NewChunk(4, 1)
	chunk.Set(0, 0, IQ{Re: 99, Im: 1})
	require.True(t, sess.Send(ctx, TxInput{Complex: chunk}))
	sess.Finish()

	select {
	case iq := <-received:
		assert.EqualValues(t, 99, iq.Re)
	case <-time.After(2 * time.Second):
		t.Fatal("expected mock consumer to observe transmitted sample")
	}

	assert.Equal(t, TerminationWriterDone, sess.Wait())
}
