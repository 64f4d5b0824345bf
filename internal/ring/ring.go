package ring

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/c2h5oh/datasize"
	"golang.org/x/sys/unix"

	"github.com/sdrshm/sdrshm/internal/sdrerr"
)

// Ring is a memory-mapped handle onto a ring buffer file. Exactly one
// writer and one reader use a given Ring. Whether a handle came from
// Create or Open decides only whether it owns the file (see Owner);
// the writer or reader role follows from how the caller uses it.
type Ring struct {
	path string
	file *os.File
	data []byte // the full mapping: header + slot storage
	hdr  *header

	chunkSize   uint32
	numSlots    uint32
	numChannels uint16
	chunkBytes  uint32 // chunkSize * numChannels * SampleSize

	owner bool // true if this handle created the file and owns deletion
}

func chunkBytesFor(chunkSize uint32, numChannels uint16) uint32 {
	return chunkSize * uint32(numChannels) * SampleSize
}

func fileSizeFor(chunkSize, numSlots uint32, numChannels uint16) int64 {
	return int64(HeaderSize) + int64(numSlots)*int64(chunkBytesFor(chunkSize, numChannels))
}

// Create truncates path to the exact size implied by the given
// geometry, zeroes the header, writes the immutable metadata fields,
// and maps the file read/write. It fails if path already exists;
// callers are expected to delete stale ring files first (see
// DeleteRing), matching the supervisor's "delete-then-create" startup
// sequence.
func Create(path string, chunkSize, numSlots uint32, numChannels uint16) (*Ring, error) {
	if chunkSize == 0 {
		return nil, fmt.Errorf("ring: create: %w: chunk_size must be > 0", sdrerr.ErrRingMalformed)
	}
	if numSlots == 0 {
		return nil, fmt.Errorf("ring: create: %w: num_slots must be > 0", sdrerr.ErrRingMalformed)
	}
	if numChannels != 1 && numChannels != 2 {
		return nil, fmt.Errorf("ring: create: %w: num_channels must be 1 or 2", sdrerr.ErrRingMalformed)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("ring: create %s: %w", path, err)
	}

	size := fileSizeFor(chunkSize, numSlots, numChannels)
	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ring: truncate %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	hdr := (*header)(unsafe.Pointer(&data[0]))
	hdr.ChunkSize = chunkSize
	hdr.NumSlots = numSlots
	hdr.ChannelsFlags = uint32(numChannels)
	hdr.SampleSize = SampleSize

	return &Ring{
		path:        path,
		file:        f,
		data:        data,
		hdr:         hdr,
		chunkSize:   chunkSize,
		numSlots:    numSlots,
		numChannels: numChannels,
		chunkBytes:  chunkBytesFor(chunkSize, numChannels),
		owner:       true,
	}, nil
}

// Open maps an existing ring file read/write and validates its header.
// It returns sdrerr.ErrRingAbsent, sdrerr.ErrRingTooSmall, or
// sdrerr.ErrRingMalformed as appropriate; the supervisor's open-wait
// loop retries on all three.
func Open(path string) (*Ring, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ring: open %s: %w", path, sdrerr.ErrRingAbsent)
		}
		return nil, fmt.Errorf("ring: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: stat %s: %w", path, err)
	}
	if info.Size() < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("ring: open %s: %w", path, sdrerr.ErrRingTooSmall)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	hdr := (*header)(unsafe.Pointer(&data[0]))

	chunkSize := atomic.LoadUint32(&hdr.ChunkSize)
	numSlots := atomic.LoadUint32(&hdr.NumSlots)
	channelsFlags := atomic.LoadUint32(&hdr.ChannelsFlags)
	numChannels := uint16(channelsFlags & 0xFFFF)

	r := &Ring{
		path:        path,
		file:        f,
		data:        data,
		hdr:         hdr,
		chunkSize:   chunkSize,
		numSlots:    numSlots,
		numChannels: numChannels,
		chunkBytes:  chunkBytesFor(chunkSize, numChannels),
		owner:       false,
	}

	if err := r.Validate(); err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("ring: open %s: %w", path, err)
	}

	return r, nil
}

// Validate checks the mapped header against the ring's invariants
// (§3: nonzero chunk_size/num_slots, num_channels in {1,2}, the
// expected sample_size, and a mapping large enough to hold every
// slot), returning ErrRingMalformed or ErrRingTooSmall. Open calls it
// once right after mapping; exposed so callers other than Open (the
// supervisor's polling loop retries through Open today, but a future
// caller revalidating an already-open Ring doesn't have to duplicate
// this logic) can reuse the same check.
func (r *Ring) Validate() error {
	sampleSize := atomic.LoadUint32(&r.hdr.SampleSize)
	if r.chunkSize == 0 || r.numSlots == 0 || (r.numChannels != 1 && r.numChannels != 2) || sampleSize != SampleSize {
		return sdrerr.ErrRingMalformed
	}
	if int64(len(r.data)) < fileSizeFor(r.chunkSize, r.numSlots, r.numChannels) {
		return sdrerr.ErrRingTooSmall
	}
	return nil
}

// SyncAndUnmap flushes the mapping and releases it. It must be called
// before the file is deleted to avoid a dangling mapping.
func (r *Ring) SyncAndUnmap() error {
	if r.data == nil {
		return nil
	}
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		unix.Munmap(r.data)
		r.file.Close()
		r.data = nil
		return fmt.Errorf("ring: msync %s: %w", r.path, err)
	}
	if err := unix.Munmap(r.data); err != nil {
		r.file.Close()
		r.data = nil
		return fmt.Errorf("ring: munmap %s: %w", r.path, err)
	}
	r.data = nil
	return r.file.Close()
}

// Owner reports whether this handle created the ring file and is
// therefore responsible for deleting it.
func (r *Ring) Owner() bool { return r.owner }

// Path returns the ring file's path.
func (r *Ring) Path() string { return r.path }

// ChunkSize returns the configured samples-per-chunk-per-channel.
func (r *Ring) ChunkSize() uint32 { return r.chunkSize }

// NumSlots returns the configured slot count.
func (r *Ring) NumSlots() uint32 { return r.numSlots }

// NumChannels returns the configured channel count (1 or 2).
func (r *Ring) NumChannels() uint16 { return r.numChannels }

// MappedSize is the total bytes backing the mapping (header plus every
// slot), for human-readable logging of ring geometry.
func (r *Ring) MappedSize() datasize.ByteSize {
	return datasize.ByteSize(fileSizeFor(r.chunkSize, r.numSlots, r.numChannels))
}

// --- atomic accessors -------------------------------------------------
//
// Go's sync/atomic load/store operations are sequentially consistent,
// a strict superset of the acquire/release semantics this protocol
// requires. There is no separate "relaxed" tier in the Go memory
// model's atomic package; the *Relaxed accessors below are named for
// the role they play in the protocol (they are never load-bearing for
// ordering) and compile to the same instruction as the acquire/release
// ones.

func (r *Ring) LoadWriteIndexAcquire() uint64 { return atomic.LoadUint64(&r.hdr.WriteIndex) }
func (r *Ring) LoadWriteIndexRelaxed() uint64 { return atomic.LoadUint64(&r.hdr.WriteIndex) }
func (r *Ring) StoreWriteIndexRelease(v uint64) {
	atomic.StoreUint64(&r.hdr.WriteIndex, v)
}

func (r *Ring) LoadReadIndexAcquire() uint64 { return atomic.LoadUint64(&r.hdr.ReadIndex) }
func (r *Ring) LoadReadIndexRelaxed() uint64 { return atomic.LoadUint64(&r.hdr.ReadIndex) }
func (r *Ring) StoreReadIndexRelease(v uint64) {
	atomic.StoreUint64(&r.hdr.ReadIndex, v)
}

func (r *Ring) LoadErrorCount() uint64 { return atomic.LoadUint64(&r.hdr.ErrorCount) }
func (r *Ring) AddErrorCount(delta uint64) {
	atomic.AddUint64(&r.hdr.ErrorCount, delta)
}

func (r *Ring) LoadBufferStallCount() uint64 { return atomic.LoadUint64(&r.hdr.BufferStallCount) }
func (r *Ring) AddBufferStallCount(delta uint64) {
	atomic.AddUint64(&r.hdr.BufferStallCount, delta)
}

// IsWriterDone reports whether the writer_done bit is set.
func (r *Ring) IsWriterDone() bool {
	return atomic.LoadUint32(&r.hdr.ChannelsFlags)&(writerDoneFlag<<16) != 0
}

// SetWriterDone sets the writer_done bit. The writer is the sole
// mutator of the flags half-word, so a single plain store of the
// combined word (num_channels is immutable and cached on Ring) is
// sufficient; no read-modify-write loop is needed.
func (r *Ring) SetWriterDone() {
	combined := uint32(r.numChannels) | (writerDoneFlag << 16)
	atomic.StoreUint32(&r.hdr.ChannelsFlags, combined)
}

// CanRead reports whether at least one published slot is available.
func (r *Ring) CanRead() bool {
	return r.LoadWriteIndexAcquire() > r.LoadReadIndexRelaxed()
}

// CanWrite reports whether at least one free slot is available.
func (r *Ring) CanWrite() bool {
	return r.LoadWriteIndexRelaxed()-r.LoadReadIndexAcquire() < uint64(r.numSlots)
}

// SlotPtr returns the byte offset into the mapping of the slot at
// index mod NumSlots. Bounds are guaranteed by construction: index mod
// NumSlots is always < NumSlots, and the mapping is sized to hold
// exactly NumSlots slots.
func (r *Ring) SlotPtr(index uint64) int {
	slot := index % uint64(r.numSlots)
	return HeaderSize + int(slot)*int(r.chunkBytes)
}

// SlotBytes returns the raw byte slice backing the slot at index mod
// NumSlots. Callers must not retain it past the next SyncAndUnmap.
func (r *Ring) SlotBytes(index uint64) []byte {
	off := r.SlotPtr(index)
	return r.data[off : off+int(r.chunkBytes)]
}
