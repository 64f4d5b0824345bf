// Package bridge reshapes RX chunks, published (channels, samples),
// into the (samples, channels) row-major layout TX's input side and
// most downstream DSP consumers expect.
package bridge

import (
	"context"

	"github.com/sdrshm/sdrshm/internal/ring"
)

// Stream consumes in and emits each chunk reshaped to (samples,
// channels) on the returned channel, which is closed when in closes
// or ctx is canceled. poolSize is the returned channel's buffer;
// poolSize+2 chunks are rotated to avoid per-chunk allocation, so a
// chunk is not overwritten while still buffered or held by the
// consumer, mirroring rx's own pool sizing.
func Stream(ctx context.Context, in <-chan *ring.Chunk, poolSize int) <-chan *ring.Chunk {
	out := make(chan *ring.Chunk, poolSize)

	go func() {
		defer close(out)

		var pool []*ring.Chunk
		idx := 0

		for {
			select {
			case src, ok := <-in:
				if !ok {
					return
				}

				if pool == nil {
					pool = make([]*ring.Chunk, poolSize+2)
					for i := range pool {
						pool[i] = ring.NewChunk(src.Cols, src.Rows)
					}
				}
				dst := pool[idx]
				idx = (idx + 1) % len(pool)
				Reshape(src, dst)

				select {
				case out <- dst:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Reshape transposes src, shaped (channels, samples), into dst, shaped
// (samples, channels). dst is resized in place if needed. Single
// channel is a dense copy; multi-channel transposes.
func Reshape(src, dst *ring.Chunk) {
	channels, samples := src.Rows, src.Cols
	dst.Reset(samples, channels)

	if channels == 1 {
		copy(dst.Data, src.Data)
		return
	}
	for c := 0; c < channels; c++ {
		for s := 0; s < samples; s++ {
			dst.Set(s, c, src.At(c, s))
		}
	}
}
