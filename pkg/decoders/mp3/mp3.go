package mp3

import (
	"fmt"
	"io"
	"os"

	"github.com/imcarsen/go-mp3"
)

// Decoder wraps go-mp3 to provide MP3 decoding capabilities.
// Implements types.AudioDecoder interface.
//
// go-mp3 always decodes to 16-bit stereo PCM, regardless of the source
// file's channel layout, so channels is fixed at 2 and bps at 16.
type Decoder struct {
	file    *os.File
	decoder *mp3.Decoder
	rate    int
}

// NewDecoder creates a new MP3 decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// GetFormat returns the audio format (rate, channels, bits per sample)
func (d *Decoder) GetFormat() (int, int, int) {
	return d.rate, 2, 16
}

// DecodeSamples decodes the specified number of samples into the audio buffer
// Returns the number of samples decoded (not bytes)
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.decoder == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	const bytesPerSample = 2 * 2 // stereo, 16-bit
	need := samples * bytesPerSample
	if need > len(audio) {
		need = len(audio) - (len(audio) % bytesPerSample)
	}

	n, err := io.ReadFull(d.decoder, audio[:need])
	decoded := n / bytesPerSample

	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return decoded, io.EOF
	}
	return decoded, err
}

// Open opens and initializes an MP3 file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	d.file = file
	d.decoder = decoder
	d.rate = decoder.SampleRate()

	return nil
}

// Close closes the decoder and releases resources
func (d *Decoder) Close() error {
	d.decoder = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
