// Package flac decodes FLAC feeder files into the 16-bit interleaved PCM
// the playback engine accepts.
package flac

import (
	"fmt"

	goflac "github.com/drgolem/go-flac/flac"
)

// Decoder implements types.AudioDecoder on top of go-flac's frame decoder,
// pinned to 16-bit output regardless of the file's native depth.
type Decoder struct {
	decoder  *goflac.FlacDecoder
	rate     int
	channels int
}

// NewDecoder returns a Decoder; call Open before decoding.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open initializes a FLAC file for decoding.
func (d *Decoder) Open(fileName string) error {
	decoder, err := goflac.NewFlacFrameDecoder(16)
	if err != nil {
		return fmt.Errorf("create flac decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("open %s: %w", fileName, err)
	}

	rate, channels, _ := decoder.GetFormat()

	d.decoder = decoder
	d.rate = rate
	d.channels = channels
	return nil
}

// Close releases the underlying decoder. Safe to call twice.
func (d *Decoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

// GetFormat returns the stream's rate and channel count; bits per sample is
// always 16, the engine's wire format.
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

// DecodeSamples fills audio with up to samples frames of interleaved s16le
// PCM and returns the frame count decoded.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("flac decoder not open")
	}
	return d.decoder.DecodeSamples(samples, audio)
}
