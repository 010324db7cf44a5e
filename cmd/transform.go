package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/hdaudio/avengine/internal/engine"
	"github.com/hdaudio/avengine/pkg/decoders"
	"github.com/hdaudio/avengine/pkg/pcm16"
	"github.com/hdaudio/avengine/pkg/types"

	"github.com/spf13/cobra"
	wav "github.com/youpy/go-wav"
	soxr "github.com/zaf/resample"
)

var (
	transformRate int
	transformOut  string
	transformMono bool
)

// transformCmd converts feeder files to a rate the engine accepts. The
// engine itself never resamples, so material at an oddball rate has to be
// prepared offline before play will take it.
var transformCmd = &cobra.Command{
	Use:   "transform <input_file>",
	Short: "Resample a feeder file to an engine-supported rate",
	Long: `Decodes an MP3, FLAC, WAV, or Ogg Vorbis file, resamples it to one of the
playback engine's supported rates (44100 or 48000 Hz), and writes a 16-bit
PCM WAV the play command can feed straight through.

Examples:
  avengine transform input.mp3 --rate 48000 --out output.wav
  avengine transform input.flac --rate 44100 --mono --out output.wav`,
	Args: cobra.ExactArgs(1),
	Run:  runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().IntVar(&transformRate, "rate", 48000, "Target sample rate in Hz (must be engine-supported)")
	transformCmd.Flags().StringVar(&transformOut, "out", "out_transformed.wav", "Output WAV file path")
	transformCmd.Flags().BoolVar(&transformMono, "mono", false, "Mix the output down to mono")
}

func runTransform(cmd *cobra.Command, args []string) {
	inFileName := args[0]

	if !slices.Contains(engine.SupportedRates(), transformRate) {
		slog.Error("target rate is not engine-supported", "rate", transformRate, "supported", engine.SupportedRates())
		os.Exit(1)
	}

	decoder, err := decoders.NewDecoder(inFileName)
	if err != nil {
		slog.Error("failed to open decoder", "error", err)
		os.Exit(1)
	}
	defer decoder.Close()

	inRate, channels, bits := decoder.GetFormat()
	if bits != 16 {
		slog.Error("only 16-bit feeder sources are supported", "bits_per_sample", bits)
		os.Exit(1)
	}

	slog.Info("transforming feeder file",
		"input", inFileName, "input_rate", inRate, "channels", channels,
		"output", transformOut, "output_rate", transformRate, "mono", transformMono)

	audioData, frames, err := decodeAll(decoder, channels)
	if err != nil {
		slog.Error("decode failed", "error", err)
		os.Exit(1)
	}
	slog.Info("decoded", "frames", frames, "bytes", len(audioData))

	resampled, err := resamplePCM(audioData, inRate, transformRate, channels)
	if err != nil {
		slog.Error("resample failed", "error", err)
		os.Exit(1)
	}

	outChannels := channels
	output := resampled
	if transformMono && channels > 1 {
		output = mixToMono(resampled, channels)
		outChannels = 1
	}

	outFrames := len(output) / (outChannels * 2)
	if err := writeWAV(transformOut, output, uint32(outFrames), uint16(outChannels), uint32(transformRate)); err != nil {
		slog.Error("write failed", "error", err)
		os.Exit(1)
	}

	slog.Info("transform complete",
		"input_frames", frames, "output_frames", outFrames,
		"ratio", fmt.Sprintf("%.3f", float64(transformRate)/float64(inRate)))
}

// decodeAll pulls the whole source into memory; offline preparation trades
// footprint for a single resampler pass.
func decodeAll(decoder types.AudioDecoder, channels int) ([]byte, int, error) {
	const chunkFrames = 4096
	chunk := make([]byte, chunkFrames*channels*2)
	data := make([]byte, 0, len(chunk)*16)
	frames := 0

	for {
		n, err := decoder.DecodeSamples(chunkFrames, chunk)
		if n > 0 {
			data = append(data, chunk[:n*channels*2]...)
			frames += n
		}
		if err != nil {
			// go-flac signals end of stream with "done" rather than io.EOF.
			if strings.Contains(err.Error(), "EOF") || strings.Contains(err.Error(), "done") {
				break
			}
			return nil, 0, fmt.Errorf("decode: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return data, frames, nil
}

// resamplePCM converts 16-bit interleaved PCM between rates with SoXR.
func resamplePCM(data []byte, fromRate, toRate, channels int) ([]byte, error) {
	if fromRate == toRate {
		return data, nil
	}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)

	resampler, err := soxr.New(w, float64(fromRate), float64(toRate), channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	if _, err := resampler.Write(data); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("resample: %w", err)
	}
	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("close resampler: %w", err)
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// mixToMono folds multi-channel 16-bit PCM to one channel. Stereo goes
// through the engine's own 2→1 mixdown; wider layouts average every channel.
func mixToMono(data []byte, channels int) []byte {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}

	var mono []int16
	if channels == 2 {
		mono = pcm16.Remix(samples, 2, 1)
	} else {
		frames := len(samples) / channels
		mono = make([]int16, frames)
		for f := 0; f < frames; f++ {
			var sum int32
			for ch := 0; ch < channels; ch++ {
				sum += int32(samples[f*channels+ch])
			}
			mono[f] = int16(sum / int32(channels))
		}
	}

	out := make([]byte, len(mono)*2)
	for i, s := range mono {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// writeWAV writes 16-bit PCM to a WAV container.
func writeWAV(fileName string, data []byte, frames uint32, channels uint16, rate uint32) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := wav.NewWriter(f, frames, channels, rate, 16)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}
