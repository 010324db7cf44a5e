package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hdaudio/avengine/internal/engine"
	"github.com/hdaudio/avengine/pkg/decoders"
	"github.com/hdaudio/avengine/pkg/decoders/stream"
	"github.com/hdaudio/avengine/pkg/types"

	"github.com/spf13/cobra"
)

var (
	playDevice        string
	playDeviceAC3     string
	playBufferTimeMs  int
	playVolume        int
	playSoftvol       bool
	playNormalize     bool
	playCompression   bool
	playStereoDescent int
	playVerbose       bool
	playRawRate       int
	playRawChannels   int
)

// playCmd feeds a decoded feeder file (MP3/FLAC/WAV/Ogg Vorbis) through the
// engine and plays it back, exercising the full producer API the way a real
// decode thread would.
var playCmd = &cobra.Command{
	Use:   "play <audio_file>",
	Short: "Feed a decoded file through the engine and play it back",
	Long: `Decodes an MP3, FLAC, WAV, or Ogg Vorbis file and streams the PCM through
the ring-buffered audio output engine, driving Setup/Enqueue/Play exactly
as a video player's decode thread would, with no video clock present
(VideoReady is never called, so the engine starts purely on its own
start-threshold logic).

Passing "-" reads headerless interleaved s16le PCM from stdin in the format
given by --raw-rate/--raw-channels, the way an external decode process would
pipe audio in.

Examples:
  avengine play music.mp3
  avengine play --device 1 --normalize movie_audio.flac
  avengine play --softvol --stereo-descent 100 track.wav
  ffmpeg -i movie.mkv -f s16le - | avengine play --raw-rate 48000 --raw-channels 2 -`,
	Args: cobra.ExactArgs(1),
	Run:  runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playDevice, "device", "1", "PCM output device (PortAudio index, \"/dev/dspN\" for OSS, or empty for noop)")
	playCmd.Flags().StringVar(&playDeviceAC3, "device-ac3", "", "AC3 passthrough output device")
	playCmd.Flags().IntVar(&playBufferTimeMs, "buffer-time", 200, "Target buffer time in milliseconds")
	playCmd.Flags().IntVar(&playVolume, "volume", 1000, "Playback volume, 0..1000")
	playCmd.Flags().BoolVar(&playSoftvol, "softvol", false, "Apply volume in software via the amplifier filter")
	playCmd.Flags().BoolVar(&playNormalize, "normalize", false, "Enable the RMS normalizer filter")
	playCmd.Flags().BoolVar(&playCompression, "compression", false, "Enable the peak compressor filter")
	playCmd.Flags().IntVar(&playStereoDescent, "stereo-descent", 0, "Per-mille volume reduction for 2-channel output under softvol")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "Verbose debug logging")
	playCmd.Flags().IntVar(&playRawRate, "raw-rate", 48000, "Sample rate of raw stdin PCM (with \"-\")")
	playCmd.Flags().IntVar(&playRawChannels, "raw-channels", 2, "Channel count of raw stdin PCM (with \"-\")")
}

func runPlay(cmd *cobra.Command, args []string) {
	fileName := args[0]

	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var decoder types.AudioDecoder
	if fileName == "-" {
		format := stream.Format{SampleRate: playRawRate, Channels: playRawChannels, BytesPerSample: 2}
		decoder = stream.NewDecoder(cmd.Context(), stream.NewRawReader(os.Stdin, format), format)
	} else {
		if _, err := os.Stat(fileName); os.IsNotExist(err) {
			slog.Error("file not found", "path", fileName)
			os.Exit(1)
		}
		var err error
		decoder, err = decoders.NewDecoder(fileName)
		if err != nil {
			slog.Error("failed to open decoder", "error", err)
			os.Exit(1)
		}
	}
	defer decoder.Close()

	rate, channels, bits := decoder.GetFormat()
	if bits != 16 {
		slog.Error("engine only accepts 16-bit PCM", "bits_per_sample", bits)
		os.Exit(1)
	}
	slog.Info("decoded source format", "rate", rate, "channels", channels, "file", fileName)

	cfg := engine.DefaultConfig()
	cfg.BufferTimeMs = playBufferTimeMs
	cfg.Volume = playVolume
	cfg.Softvol = playSoftvol
	cfg.NormalizeOn = playNormalize
	cfg.CompressionOn = playCompression
	cfg.StereoDescent = playStereoDescent
	cfg.Device = playDevice
	cfg.DeviceAC3 = playDeviceAC3
	cfg.Logger = logger

	eng := engine.New(cfg)
	if err := eng.Init(); err != nil {
		slog.Error("engine init failed", "error", err)
		os.Exit(1)
	}
	defer eng.Exit()

	if err := eng.SetVolume(playVolume); err != nil {
		slog.Warn("set volume failed", "error", err)
	}

	result, err := eng.Setup(rate, channels, false)
	if err != nil {
		slog.Error("engine setup failed", "error", err)
		os.Exit(1)
	}
	if result == engine.SetupDowngraded {
		slog.Warn("engine downgraded channel layout", "requested", channels)
	}

	if err := eng.Play(); err != nil {
		slog.Error("play failed", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		feedDecoder(eng, decoder, channels)
	}()

	statusDone := make(chan struct{})
	if playVerbose {
		go monitorEngineStatus(eng, statusDone)
	}

	select {
	case <-done:
		slog.Info("playback complete")
	case sig := <-sigChan:
		slog.Info("signal received, stopping", "signal", sig)
	}
	close(statusDone)
}

// feedDecoder decodes the file in fixed-size chunks and enqueues them,
// pacing itself against the engine's buffered backlog so it behaves like a
// real-time decode thread rather than dumping the whole file at once.
func feedDecoder(eng *engine.Engine, decoder interface {
	DecodeSamples(samples int, audio []byte) (int, error)
}, channels int) {
	const chunkFrames = 4096
	bytesPerFrame := channels * 2
	buf := make([]byte, chunkFrames*bytesPerFrame)

	for {
		n, err := decoder.DecodeSamples(chunkFrames, buf)
		if n > 0 {
			chunkBytes := n * bytesPerFrame
			if enqErr := eng.Enqueue(buf[:chunkBytes], chunkBytes); enqErr != nil {
				slog.Error("enqueue failed", "error", enqErr)
				return
			}
			for eng.FreeBytes() < uint64(chunkBytes) {
				time.Sleep(5 * time.Millisecond)
			}
		}
		if err != nil {
			if n == 0 {
				return
			}
		}
		if n == 0 {
			return
		}
	}
}

func monitorEngineStatus(eng *engine.Engine, done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			slog.Debug("engine status",
				"used_bytes", eng.UsedBytes(),
				"free_bytes", eng.FreeBytes(),
				"clock", fmt.Sprintf("%d", eng.GetClock()),
				"delay", eng.GetDelay())
		case <-done:
			return
		}
	}
}
