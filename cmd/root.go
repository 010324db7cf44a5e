package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avengine",
	Short: "Ring-buffered audio output engine for a video playback stack",
	Long: `avengine - a lock-free, ring-of-rings audio output engine built for
feeding a hardware playback device from a video player's decode thread.

Features:
  - Lock-free SPSC byte ring buffer per pipeline slot, format-change safe
  - Producer/consumer pipeline with cooperative worker cancellation
  - Integer PCM sample filters: amplifier, compressor, normalizer, channel remix
  - Pluggable backend: PortAudio-style device, raw OSS ioctl device, or noop
  - Audio clock exposed for A/V synchronization
  - Demo CLI for MP3, FLAC, WAV and Ogg Vorbis feeder files

Commands:
  - play: feed a decoded file through the engine and play it back
  - transform: convert a feeder file to a different sample rate / WAV`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
