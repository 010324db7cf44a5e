// Package ringbuffer implements the lock-free single-producer
// single-consumer byte FIFO backing each pipeline slot: the producer writes
// remixed samples in, the playback worker peeks contiguous runs out and
// consumes them after the device accepts them.
package ringbuffer

import (
	"math/bits"
	"sync/atomic"

	"github.com/hdaudio/avengine/pkg/types"
)

// Sentinels re-exported from pkg/types for errors.Is at either end of the
// buffer.
var (
	ErrInsufficientSpace = types.ErrInsufficientSpace
	ErrInsufficientData  = types.ErrInsufficientData
)

// RingBuffer is a fixed-capacity byte FIFO safe for exactly one writer
// goroutine and one reader goroutine operating concurrently without locks.
// The write cursor is published atomically after the bytes land, so a
// reader never observes unwritten data; the cursors are free-running and
// wrapped by masking, which keeps full and empty distinguishable without
// sacrificing a slot.
//
// Writer-side methods: Write, WriteUpTo. Reader-side methods: Read,
// ReadSlices, PeekContiguous, Consume. Calling a side's methods from more
// than one goroutine is a data race.
type RingBuffer struct {
	buf  []byte
	size uint64 // power of 2
	mask uint64

	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New returns a buffer of at least the given capacity, rounded up to the
// next power of two.
func New(size uint64) *RingBuffer {
	if size == 0 {
		size = 1
	} else {
		size = 1 << bits.Len64(size-1)
	}
	return &RingBuffer{
		buf:  make([]byte, size),
		size: size,
		mask: size - 1,
	}
}

// Size returns the buffer's capacity in bytes.
func (rb *RingBuffer) Size() uint64 { return rb.size }

// AvailableRead returns the number of buffered bytes.
func (rb *RingBuffer) AvailableRead() uint64 {
	return rb.writePos.Load() - rb.readPos.Load()
}

// AvailableWrite returns the number of free bytes.
func (rb *RingBuffer) AvailableWrite() uint64 {
	return rb.size - rb.AvailableRead()
}

// Write copies all of data in, or nothing: when data exceeds the free
// space it returns ErrInsufficientSpace without writing. Writer side only.
func (rb *RingBuffer) Write(data []byte) (int, error) {
	n := uint64(len(data))
	if n == 0 {
		return 0, nil
	}
	if n > rb.AvailableWrite() {
		return 0, ErrInsufficientSpace
	}

	pos := rb.writePos.Load()
	start := pos & rb.mask
	if start+n <= rb.size {
		copy(rb.buf[start:], data)
	} else {
		head := rb.size - start
		copy(rb.buf[start:], data[:head])
		copy(rb.buf, data[head:])
	}

	// Publish: the store pairs with the reader's load in AvailableRead.
	rb.writePos.Store(pos + n)
	return int(n), nil
}

// WriteUpTo copies as much of data as fits and returns the byte count,
// which may be short (or zero) when the buffer is near full. Writer side
// only.
func (rb *RingBuffer) WriteUpTo(data []byte) int {
	free := rb.AvailableWrite()
	if free == 0 || len(data) == 0 {
		return 0
	}
	if uint64(len(data)) > free {
		data = data[:free]
	}
	n, _ := rb.Write(data)
	return n
}

// Read copies up to len(data) buffered bytes out and returns the count; an
// empty buffer returns ErrInsufficientData. Reader side only.
func (rb *RingBuffer) Read(data []byte) (int, error) {
	want := uint64(len(data))
	if want == 0 {
		return 0, nil
	}
	avail := rb.AvailableRead()
	if avail == 0 {
		return 0, ErrInsufficientData
	}
	if want > avail {
		want = avail
	}

	pos := rb.readPos.Load()
	start := pos & rb.mask
	if start+want <= rb.size {
		copy(data, rb.buf[start:start+want])
	} else {
		head := rb.size - start
		copy(data, rb.buf[start:])
		copy(data[head:want], rb.buf)
	}

	rb.readPos.Store(pos + want)
	return int(want), nil
}

// PeekContiguous returns the longest contiguous run of buffered bytes
// without consuming them; a wrapped buffer needs a Consume and a second
// call to see the remainder. Reader side only.
func (rb *RingBuffer) PeekContiguous() []byte {
	avail := rb.AvailableRead()
	if avail == 0 {
		return nil
	}
	start := rb.readPos.Load() & rb.mask
	if start+avail <= rb.size {
		return rb.buf[start : start+avail]
	}
	return rb.buf[start:]
}

// ReadSlices returns one or two slices covering every buffered byte without
// consuming them; second is nil unless the data wraps. Reader side only.
func (rb *RingBuffer) ReadSlices() (first, second []byte, total uint64) {
	avail := rb.AvailableRead()
	if avail == 0 {
		return nil, nil, 0
	}
	start := rb.readPos.Load() & rb.mask
	if start+avail <= rb.size {
		return rb.buf[start : start+avail], nil, avail
	}
	return rb.buf[start:], rb.buf[:(start+avail)&rb.mask], avail
}

// Consume advances the read cursor past n bytes previously observed via
// PeekContiguous or ReadSlices. Reader side only.
func (rb *RingBuffer) Consume(n uint64) error {
	if n == 0 {
		return nil
	}
	if n > rb.AvailableRead() {
		return ErrInsufficientData
	}
	rb.readPos.Store(rb.readPos.Load() + n)
	return nil
}

// Reset discards all buffered data. Not safe against a concurrent reader or
// writer; slots only reset while off both hot paths.
func (rb *RingBuffer) Reset() {
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}
