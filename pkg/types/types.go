// Package types holds the contracts shared between the feeder decoders and
// the playback engine's supporting packages.
package types

import "errors"

// AudioDecoder is the common surface of every feeder source (MP3, FLAC,
// WAV, Ogg Vorbis, raw streams): open, report the PCM format, hand over
// interleaved samples, close.
type AudioDecoder interface {
	// Open prepares the named source for decoding.
	Open(fileName string) error

	// Close releases the decoder's resources. Safe to call more than once.
	Close() error

	// GetFormat returns the stream's sample rate in Hz, channel count, and
	// bits per sample of the decoded output.
	GetFormat() (rate, channels, bitsPerSample int)

	// DecodeSamples fills audio with up to the given number of frames of
	// interleaved PCM and returns the frame count actually decoded. The
	// buffer must hold at least samples*channels*(bitsPerSample/8) bytes.
	DecodeSamples(samples int, audio []byte) (int, error)
}

// Ring buffer sentinels, compared with errors.Is by producers and consumers.
var (
	// ErrInsufficientSpace means a write was larger than the buffer's free
	// space and nothing was written.
	ErrInsufficientSpace = errors.New("insufficient space in ringbuffer")

	// ErrInsufficientData means a read or consume asked for more bytes than
	// the buffer holds.
	ErrInsufficientData = errors.New("insufficient data in ringbuffer")
)
