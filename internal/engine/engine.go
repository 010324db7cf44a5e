// Package engine implements the ring-buffered audio output engine: a
// producer-facing API backed by a fixed ring of format-tagged buffer
// slots, a playback worker that drains them against a pluggable backend,
// and the sample-domain filters applied along the way.
package engine

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hdaudio/avengine/pkg/backend"
	"github.com/hdaudio/avengine/pkg/pcm16"
)

// Setup result codes, matching the producer-facing contract.
const (
	SetupOK         = 0
	SetupDowngraded = 1
	SetupFail       = -1
)

// periodFrames approximates one backend iteration's frame count for the
// start-threshold formula; the Backend interface doesn't expose a true
// device period size, so every backend is assumed to move roughly this
// many frames per Thread call (PortAudio's own iteration size agrees).
const periodFrames = 512

// Config carries the engine's tunables. DefaultConfig returns sane
// production defaults; callers override only what they need.
type Config struct {
	BufferTimeMs    int
	VideoAudioDelay int64 // 1/90000s
	Volume          int   // 0..1000
	Softvol         bool
	NormalizeOn     bool
	NormalizeMax    int
	CompressionOn   bool
	CompressionMax  int
	StereoDescent   int
	Device          string
	DeviceAC3       string
	Logger          *slog.Logger
}

// DefaultConfig returns the engine's out-of-the-box tunables.
func DefaultConfig() Config {
	return Config{
		BufferTimeMs:   200,
		Volume:         1000,
		NormalizeMax:   4000,
		CompressionMax: 4000,
		Logger:         slog.Default(),
	}
}

// Engine is the single owned value holding all engine state: the pipeline,
// the backends, the filter chain, and the running/paused control block.
// One producer goroutine is expected to call the public methods; the
// playback worker runs on its own goroutine started by Init.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	pipeline *Pipeline
	pcm      backend.Backend
	ac3      backend.Backend
	cap      *capability
	worker   *Worker
	cancel   context.CancelFunc
	done     chan struct{}
	log      *slog.Logger

	running         bool
	paused          bool
	videoReady      bool
	skipBytes       int
	volume          int
	softvol         bool
	stereoDescent   int
	normalizeOn     bool
	compressionOn   bool
	bufferTimeMs    int
	videoAudioDelay int64
	channelHint     int

	amp  pcm16.Amplifier
	comp *pcm16.Compressor
	norm *pcm16.Normalizer

	// Enqueue scratch, reused across calls; the producer is single-threaded
	// under mu so these never alias concurrent packets.
	remixIn  []int16
	remixOut []int16
	outBytes []byte
}

// New builds an Engine from cfg. Call Init before using it.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		pipeline:        NewPipeline(),
		pcm:             backend.NewForDevice(cfg.Device),
		ac3:             backend.NewForDevice(cfg.DeviceAC3),
		log:             cfg.Logger,
		volume:          cfg.Volume,
		softvol:         cfg.Softvol,
		normalizeOn:     cfg.NormalizeOn,
		compressionOn:   cfg.CompressionOn,
		stereoDescent:   cfg.StereoDescent,
		bufferTimeMs:    cfg.BufferTimeMs,
		videoAudioDelay: cfg.VideoAudioDelay,
		comp:            pcm16.NewCompressor(cfg.CompressionMax),
		norm:            pcm16.NewNormalizer(100, cfg.NormalizeMax),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Init acquires both backends, probes PCM capability, and starts the
// playback worker. If the requested PCM backend fails to open, the engine
// logs and falls back to the noop backend so playback never blocks on a
// missing device.
func (e *Engine) Init() error {
	if err := e.pcm.Init(); err != nil {
		e.log.Warn("pcm backend init failed, falling back to noop", "err", err)
		e.pcm = backend.NewNoop()
		if err := e.pcm.Init(); err != nil {
			return err
		}
	}
	if err := e.ac3.Init(); err != nil {
		e.log.Warn("ac3 backend init failed, falling back to noop", "err", err)
		e.ac3 = backend.NewNoop()
		if err := e.ac3.Init(); err != nil {
			return err
		}
	}

	e.cap = probe(e.pcm)
	e.worker = NewWorker(e.pipeline, e.pcm, e.ac3, e.log)
	e.worker.gate = e.waitRunning
	e.worker.paused = e.isPaused
	e.worker.onReset = e.resetFilters

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	}()

	go func() {
		defer close(e.done)
		if err := e.worker.Run(ctx); err != nil {
			e.log.Error("playback worker exited", "err", err)
		}
	}()

	return nil
}

// Exit stops the worker and releases both backends. Idempotent.
func (e *Engine) Exit() error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.done != nil {
		<-e.done
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	err1 := e.pcm.Exit()
	err2 := e.ac3.Exit()
	if err1 != nil {
		return err1
	}
	return err2
}

func (e *Engine) waitRunning(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A start request can land between the worker's last iteration and this
	// gate; re-deriving running from the pipeline state instead of blindly
	// clearing it keeps that request from being lost.
	e.running = e.pendingWorkLocked()
	for !e.running {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		e.cond.Wait()
	}
	return true
}

func (e *Engine) pendingWorkLocked() bool {
	if e.paused {
		return false
	}
	if e.pipeline.Filled() > 0 {
		return true
	}
	slot := e.pipeline.ReadSlot()
	return slot.HWRate != 0 && slot.Buffer.AvailableRead() > uint64(slot.StartThreshold)
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// resetFilters clears the compressor and normalizer at slot transitions so
// gain state learned on one format never bleeds into the next.
func (e *Engine) resetFilters() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.comp.Reset()
	e.norm.Reset()
}

// Setup requests a playback format for subsequent Enqueue calls. Returns
// SetupOK, SetupDowngraded (hw channel count differs from requested), or
// SetupFail (unsupported rate, or the ring has no free slot).
func (e *Engine) Setup(rate, channels int, useAC3 bool) (int, error) {
	if rate <= 0 || channels <= 0 {
		return SetupFail, ErrBadArgument
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	requested := channels
	if e.channelHint != 0 {
		requested = e.channelHint
	}

	hwChannels := requested
	downgraded := false
	if !useAC3 {
		if !rateSupported(rate) {
			return SetupFail, ErrUnsupportedFormat
		}
		hwChannels = e.cap.resolve(rate, requested)
		if hwChannels == 0 {
			return SetupFail, ErrUnsupportedFormat
		}
		downgraded = hwChannels != channels
	}

	if err := e.pipeline.AddSlot(rate, channels, rate, hwChannels, useAC3); err != nil {
		return SetupFail, err
	}

	slot := e.pipeline.WriteSlot()
	slot.StartThreshold = e.startThreshold(rate, hwChannels)
	e.startLocked()

	if downgraded {
		return SetupDowngraded, nil
	}
	return SetupOK, nil
}

func (e *Engine) startThreshold(rate, channels int) int {
	periodBytes := periodFrames * channels * bytesPerSample

	delayMs := e.videoAudioDelay / 90
	if delayMs < 0 {
		delayMs = 0
	}
	timeMs := int64(e.bufferTimeMs) + delayMs
	timeBytes := int64(rate) * int64(channels) * bytesPerSample * timeMs / 1000

	threshold := int64(periodBytes)
	if timeBytes > threshold {
		threshold = timeBytes
	}
	if ceiling := int64(slotBufferBytes / 3); threshold > ceiling {
		threshold = ceiling
	}
	return int(threshold)
}

// Enqueue writes one packet of samples (in the format given to the most
// recent Setup) into the current write slot, applying remix and the
// enabled filters, and evaluates the startup condition.
func (e *Engine) Enqueue(buf []byte, n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.pipeline.WriteSlot()
	if slot.HWRate == 0 {
		return nil
	}
	if n > len(buf) {
		n = len(buf)
	}
	data := buf[:n]
	if slot.PacketSize == 0 {
		slot.PacketSize = n
	}

	var out []byte
	if slot.UseAC3 {
		out = data
	} else {
		frameBytes := slot.InChannels * bytesPerSample
		frames := len(data) / frameBytes
		e.remixIn = bytesToInt16Into(e.remixIn, data[:frames*frameBytes])

		samples := pcm16.RemixInto(e.remixOut, e.remixIn, slot.InChannels, slot.HWChannels)
		e.remixOut = samples

		if e.softvol {
			gain := e.volume
			if slot.HWChannels == 2 {
				gain = clampInt(e.volume-e.stereoDescent, 0, 1000)
			}
			e.amp.Gain = gain
			e.amp.Apply(samples)
		}
		if e.compressionOn {
			e.comp.Apply(samples)
		}
		if e.normalizeOn {
			e.norm.Apply(samples)
		}

		e.outBytes = int16ToBytesInto(e.outBytes, samples)
		out = e.outBytes
	}

	// PTS tracks stream time of the next incoming sample, so it advances by
	// the full remixed packet even when skip or backpressure drops bytes.
	produced := len(out)

	if !e.running && e.skipBytes > 0 {
		drop := e.skipBytes
		if drop > len(out) {
			drop = len(out)
		}
		out = out[drop:]
		e.skipBytes -= drop
	}

	written := slot.Buffer.WriteUpTo(out)
	if written < len(out) {
		e.log.Debug("slot buffer full, dropping tail", "dropped", len(out)-written)
	}

	if !e.running {
		used := slot.Buffer.AvailableRead()
		if used > uint64(4*slot.StartThreshold) || (e.videoReady && used > uint64(slot.StartThreshold)) {
			e.startLocked()
		}
	}

	if slot.PTS != NoPTS {
		slot.PTS += bytesToTicks(produced, slot.HWRate, slot.HWChannels)
	}

	return nil
}

func (e *Engine) startLocked() {
	e.running = true
	e.cond.Broadcast()
}

// FlushBuffers drains the current write slot, rotates to a fresh slot
// carrying the previous format with a flush marker the worker will act on,
// clears video-ready/skip state, wakes the worker, and polls up to 48ms for
// the ring to drain.
func (e *Engine) FlushBuffers() error {
	e.mu.Lock()
	prev := e.pipeline.WriteSlot()
	if err := e.pipeline.AddSlot(prev.InRate, prev.InChannels, prev.HWRate, prev.HWChannels, prev.UseAC3); err != nil {
		e.mu.Unlock()
		return err
	}
	// Dropping the old slot's queued bytes makes the worker underrun on its
	// next iteration and land on the flush marker. Consume only ever moves
	// the read cursor forward, never past the write cursor, so racing the
	// worker's own consumption here stays safe.
	if used := prev.Buffer.AvailableRead(); used > 0 {
		prev.Buffer.Consume(used)
	}
	next := e.pipeline.WriteSlot()
	next.StartThreshold = prev.StartThreshold
	e.videoReady = false
	e.skipBytes = 0
	e.startLocked()
	e.mu.Unlock()

	deadline := time.Now().Add(48 * time.Millisecond)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		filled := e.pipeline.Filled()
		e.mu.Unlock()
		if filled == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

// SetClock assigns the write slot's PTS directly.
func (e *Engine) SetClock(pts int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline.WriteSlot().PTS = pts
}

// GetClock returns the current playback position, or NoPTS if it can't be
// computed right now (not running, no format on the read slot, a format
// transition is in flight, or the backend reports zero delay).
func (e *Engine) GetClock() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return NoPTS
	}
	slot := e.pipeline.ReadSlot()
	if slot.HWRate == 0 || e.pipeline.Filled() > 0 || slot.PTS == NoPTS {
		return NoPTS
	}

	delay := e.delayLocked(slot)
	if delay == 0 {
		return NoPTS
	}
	return slot.PTS - delay
}

// GetDelay reports the total buffered latency: samples held by the device
// plus the read slot's still-queued bytes. Zero when playback hasn't started.
func (e *Engine) GetDelay() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return 0
	}
	return e.delayLocked(e.pipeline.ReadSlot())
}

func (e *Engine) delayLocked(slot *Slot) int64 {
	be := e.pcm
	if slot.UseAC3 {
		be = e.ac3
	}
	used := slot.Buffer.AvailableRead()
	return be.GetDelay() + bytesToTicks(int(used), slot.HWRate, slot.HWChannels)
}

// FreeBytes returns the write slot's remaining capacity.
func (e *Engine) FreeBytes() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.WriteSlot().Buffer.AvailableWrite()
}

// UsedBytes returns the write slot's buffered byte count.
func (e *Engine) UsedBytes() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.WriteSlot().Buffer.AvailableRead()
}

// VideoReady reports a video presentation timestamp to the engine so it
// can decide whether audio needs to skip ahead before starting.
func (e *Engine) VideoReady(videoPTS int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.pipeline.WriteSlot()
	if videoPTS == NoPTS || slot.PTS == NoPTS {
		e.videoReady = true
		return
	}

	used := slot.Buffer.AvailableRead()
	audioPTS := slot.PTS - bytesToTicks(int(used), slot.HWRate, slot.HWChannels)

	if !e.running {
		const preroll = 15 * 20 * 90
		skip := videoPTS - preroll - int64(e.bufferTimeMs)*90 - audioPTS + e.videoAudioDelay
		if skip > 0 && skip < 2000*90 {
			skipBytes := ticksToBytes(skip, slot.HWRate, slot.HWChannels)
			drop := skipBytes
			if drop > int64(used) {
				drop = int64(used)
			}
			slot.Buffer.Consume(uint64(drop))
			e.skipBytes = int(skipBytes - drop)
		}
		if slot.Buffer.AvailableRead() > uint64(slot.StartThreshold) {
			e.startLocked()
		}
	}

	e.videoReady = true
}

// Play resumes both backends' device clocks and wakes the worker directly;
// resuming is an explicit signal, not a side effect of enqueueing data.
func (e *Engine) Play() error {
	e.mu.Lock()
	wasPaused := e.paused
	e.paused = false
	if wasPaused {
		e.startLocked()
	}
	e.mu.Unlock()
	if err := e.pcm.Play(); err != nil {
		return err
	}
	return e.ac3.Play()
}

// Pause suspends both backends' device clocks.
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	if err := e.pcm.Pause(); err != nil {
		return err
	}
	return e.ac3.Pause()
}

// SetVolume sets the software or hardware volume, 0..1000.
func (e *Engine) SetVolume(v int) error {
	v = clampInt(v, 0, 1000)
	e.mu.Lock()
	e.volume = v
	softvol := e.softvol
	e.mu.Unlock()
	if softvol {
		return nil
	}
	if err := e.pcm.SetVolume(v); err != nil {
		return err
	}
	return e.ac3.SetVolume(v)
}

// SetBufferTime sets the target buffer time, in milliseconds, used by the
// start-threshold formula.
func (e *Engine) SetBufferTime(ms int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bufferTimeMs = ms
}

// SetVideoAudioDelay sets the A/V offset, in 1/90000s, the video subsystem
// wants applied; it feeds both the start threshold and the VideoReady skip
// computation.
func (e *Engine) SetVideoAudioDelay(delay int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoAudioDelay = delay
}

// SetSoftvol toggles software volume control via the amplifier filter.
func (e *Engine) SetSoftvol(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.softvol = on
}

// SetNormalize toggles the normalizer filter and its per-mille ceiling.
func (e *Engine) SetNormalize(on bool, max int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.normalizeOn = on
	e.norm.MaxNorm = max
}

// SetCompression toggles the compressor filter and its per-mille ceiling.
func (e *Engine) SetCompression(on bool, max int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compressionOn = on
	e.comp.MaxCompression = max
}

// SetStereoDescent sets the per-mille volume reduction applied only to
// 2-channel non-AC3 slots under software volume.
func (e *Engine) SetStereoDescent(permille int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stereoDescent = permille
}

// SetDevice rebinds the PCM backend. Only valid before Init.
func (e *Engine) SetDevice(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrBadArgument
	}
	e.pcm = backend.NewForDevice(name)
	return nil
}

// SetDeviceAC3 rebinds the AC3 passthrough backend. Only valid before Init.
func (e *Engine) SetDeviceAC3(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return ErrBadArgument
	}
	e.ac3 = backend.NewForDevice(name)
	return nil
}

// SetChannel forces subsequent Setup calls to resolve hardware channels
// against the given count instead of the caller-supplied one (e.g. forcing
// a "2" to pin everything to stereo regardless of source channel layout).
// An empty name clears the override.
func (e *Engine) SetChannel(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		e.channelHint = 0
		return nil
	}
	n, err := strconv.Atoi(name)
	if err != nil || n < 1 || n > 8 {
		return ErrBadArgument
	}
	e.channelHint = n
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
