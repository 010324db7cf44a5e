// Package wav decodes PCM WAV feeder files, converting any supported bit
// depth down to the 16-bit interleaved samples the playback engine accepts.
package wav

import (
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// Decoder implements types.AudioDecoder on top of go-wav. Files of any PCM
// bit depth open; the output is always s16le, so GetFormat reports 16 bits
// regardless of the source depth.
type Decoder struct {
	file     *os.File
	reader   *wav.Reader
	rate     int
	channels int
	srcBits  int
}

// NewDecoder returns a Decoder; call Open before decoding.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens a WAV file and validates it is linear PCM.
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("open wav: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("read wav format: %w", err)
	}

	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("unsupported wav format %d, only linear PCM", format.AudioFormat)
	}
	switch format.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		file.Close()
		return fmt.Errorf("unsupported wav bit depth %d", format.BitsPerSample)
	}

	d.file = file
	d.reader = reader
	d.rate = int(format.SampleRate)
	d.channels = int(format.NumChannels)
	d.srcBits = int(format.BitsPerSample)
	return nil
}

// Close closes the underlying file. Safe to call twice.
func (d *Decoder) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// GetFormat returns the stream's rate and channel count; bits per sample is
// always 16, the engine's wire format.
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

// DecodeSamples fills audio with up to samples frames of interleaved s16le
// PCM, narrowing or widening the source depth as needed, and returns the
// frame count decoded.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("wav decoder not open")
	}
	if max := len(audio) / (d.channels * 2); samples > max {
		samples = max
	}
	if samples == 0 {
		return 0, nil
	}

	frames, err := d.reader.ReadSamples(uint32(samples))
	for i, frame := range frames {
		for ch := 0; ch < d.channels; ch++ {
			var v int
			if ch < len(frame.Values) {
				v = d.toS16(frame.Values[ch])
			}
			offset := (i*d.channels + ch) * 2
			audio[offset] = byte(v)
			audio[offset+1] = byte(v >> 8)
		}
	}

	if len(frames) > 0 {
		return len(frames), nil
	}
	return 0, err
}

// toS16 maps one source sample to signed 16-bit. 8-bit WAV is unsigned per
// the format; wider depths are truncated toward their top 16 bits.
func (d *Decoder) toS16(v int) int {
	switch d.srcBits {
	case 8:
		return (v - 128) << 8
	case 16:
		return v
	case 24:
		return v >> 8
	default:
		return v >> 16
	}
}
