// Package stream adapts non-file audio sources (pipes, network feeds, an
// in-process decode thread) to the same decoder interface the file-backed
// feeders implement, so the play path never cares where PCM comes from.
package stream

import (
	"context"
	"io"
	"sync"
)

// Format describes a packet's PCM layout.
type Format struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// Packet is one chunk of decoded audio in interleaved PCM.
type Packet struct {
	Audio  []byte
	Frames int
	Format Format
}

// PacketProvider is any source that can hand over decoded audio a packet at
// a time. io.EOF ends the stream.
type PacketProvider interface {
	ReadPacket(ctx context.Context, frames int) (*Packet, error)
}

// Decoder implements types.AudioDecoder over a PacketProvider. Sources may
// change format mid-stream; the most recent packet's format wins and a
// notification is posted on FormatChanges for callers that need to re-Setup
// the engine.
type Decoder struct {
	provider PacketProvider
	ctx      context.Context

	mu      sync.RWMutex
	format  Format
	changes chan Format
}

// NewDecoder builds a Decoder around provider, assuming initial until the
// source reports otherwise.
func NewDecoder(ctx context.Context, provider PacketProvider, initial Format) *Decoder {
	return &Decoder{
		provider: provider,
		ctx:      ctx,
		format:   initial,
		changes:  make(chan Format, 1),
	}
}

// Open satisfies types.AudioDecoder; a stream has no file to open.
func (d *Decoder) Open(string) error { return nil }

// Close satisfies types.AudioDecoder; the provider owns its resources.
func (d *Decoder) Close() error { return nil }

// GetFormat returns the most recently observed stream format.
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.format.SampleRate, d.format.Channels, d.format.BytesPerSample * 8
}

// FormatChanges delivers a notification whenever a packet arrives in a
// different format than the last.
func (d *Decoder) FormatChanges() <-chan Format {
	return d.changes
}

// DecodeSamples pulls the next packet and copies it into audio, returning
// the frame count delivered.
func (d *Decoder) DecodeSamples(frames int, audio []byte) (int, error) {
	pkt, err := d.provider.ReadPacket(d.ctx, frames)
	if err != nil {
		return 0, err
	}
	if pkt.Frames == 0 {
		return 0, nil
	}

	d.mu.Lock()
	if pkt.Format != d.format {
		d.format = pkt.Format
		select {
		case d.changes <- pkt.Format:
		default:
		}
	}
	d.mu.Unlock()

	n := copy(audio, pkt.Audio[:pkt.Frames*pkt.Format.Channels*pkt.Format.BytesPerSample])
	return n / (pkt.Format.Channels * pkt.Format.BytesPerSample), nil
}

// RawReader is a PacketProvider over an io.Reader carrying headerless
// interleaved s16le PCM in a fixed, caller-declared format — the shape of a
// pipe from an external decode process.
type RawReader struct {
	r      io.Reader
	format Format
	buf    []byte
}

// NewRawReader wraps r, treating its bytes as PCM in the given format.
func NewRawReader(r io.Reader, format Format) *RawReader {
	return &RawReader{r: r, format: format}
}

// ReadPacket reads up to frames frames, short only at end of stream.
func (r *RawReader) ReadPacket(ctx context.Context, frames int) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frameBytes := r.format.Channels * r.format.BytesPerSample
	need := frames * frameBytes
	if cap(r.buf) < need {
		r.buf = make([]byte, need)
	}

	n, err := io.ReadFull(r.r, r.buf[:need])
	n -= n % frameBytes
	if n == 0 {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	return &Packet{Audio: r.buf[:n], Frames: n / frameBytes, Format: r.format}, nil
}
