package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/drgolem/go-portaudio/portaudio"
)

// framesPerIteration bounds a single Thread() call to roughly 10-12ms at
// typical rates, comfortably under the 24ms ceiling.
const framesPerIteration = 512

// PortAudio is the "ALSA-style" real backend, selected for any device name
// not prefixed with "/". It closes and reopens its stream on every format
// change, which empirically recovers cleanly from downstream device
// renegotiation (e.g. an HDMI sink re-handshaking).
type PortAudio struct {
	deviceIndex int

	mu       sync.Mutex
	stream   *portaudio.PaStream
	rate     int
	channels int
}

// NewPortAudio returns a PortAudio backend bound to the given device index.
func NewPortAudio(deviceIndex int) *PortAudio {
	return &PortAudio{deviceIndex: deviceIndex}
}

func (p *PortAudio) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	return nil
}

func (p *PortAudio) Exit() error {
	p.mu.Lock()
	p.closeStreamLocked()
	p.mu.Unlock()

	portaudio.Terminate()
	return nil
}

func (p *PortAudio) closeStreamLocked() {
	if p.stream == nil {
		return
	}
	p.stream.StopStream()
	p.stream.Close()
	p.stream = nil
}

// Setup always closes any existing stream before opening a new one, per the
// repeated-setup/close-reopen contract. go-portaudio does not surface a
// negotiated format different from the request, so this backend never
// reports SetupDowngraded: it either accepts the exact request or fails.
func (p *PortAudio) Setup(rate, channels int, useAC3 bool) (SetupResult, int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeStreamLocked()

	params := portaudio.PaStreamParameters{
		DeviceIndex:  p.deviceIndex,
		ChannelCount: channels,
		SampleFormat: portaudio.SampleFmtInt16,
	}

	stream, err := portaudio.NewStream(params, float64(rate))
	if err != nil {
		return SetupFail, 0, 0, fmt.Errorf("new stream: %w", err)
	}
	if err := stream.Open(framesPerIteration); err != nil {
		return SetupFail, 0, 0, fmt.Errorf("open stream: %w", err)
	}
	if err := stream.StartStream(); err != nil {
		stream.Close()
		return SetupFail, 0, 0, fmt.Errorf("start stream: %w", err)
	}

	p.stream = stream
	p.rate = rate
	p.channels = channels
	return SetupOK, rate, channels, nil
}

func (p *PortAudio) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	return p.stream.StartStream()
}

func (p *PortAudio) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	return p.stream.StopStream()
}

// FlushBuffers drops PortAudio's internal buffering by cycling the stream;
// PortAudio exposes no direct "discard pending samples" call.
func (p *PortAudio) FlushBuffers() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return nil
	}
	if err := p.stream.StopStream(); err != nil {
		return err
	}
	return p.stream.StartStream()
}

// GetDelay estimates the buffered device latency from the fixed frames per
// iteration; go-portaudio's visible API does not expose true stream latency.
func (p *PortAudio) GetDelay() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rate == 0 {
		return 0
	}
	return int64(framesPerIteration) * 90000 / int64(p.rate)
}

// SetVolume is a no-op: this backend relies on the engine's software volume.
func (p *PortAudio) SetVolume(v int) error { return nil }

func (p *PortAudio) Thread(ctx context.Context, src ByteSource) (ThreadResult, error) {
	select {
	case <-ctx.Done():
		return ThreadRunning, ctx.Err()
	default:
	}

	p.mu.Lock()
	stream, channels := p.stream, p.channels
	p.mu.Unlock()
	if stream == nil {
		return ThreadError, fmt.Errorf("portaudio: no stream configured")
	}

	bytesPerFrame := channels * 2
	want := framesPerIteration * bytesPerFrame

	peek := src.PeekContiguous()
	if len(peek) == 0 {
		return ThreadUnderrun, nil
	}
	if len(peek) > want {
		peek = peek[:want]
	}
	frames := len(peek) / bytesPerFrame
	if frames == 0 {
		return ThreadUnderrun, nil
	}
	aligned := frames * bytesPerFrame

	if err := stream.Write(frames, peek[:aligned]); err != nil {
		return ThreadError, fmt.Errorf("stream write: %w", err)
	}
	if err := src.Consume(uint64(aligned)); err != nil {
		return ThreadError, err
	}
	return ThreadRunning, nil
}
