package engine

import (
	"testing"
	"time"

	"github.com/hdaudio/avengine/pkg/backend"
)

// newTestEngine builds a fully Init'ed Engine wired to the noop backend
// (which accepts every format and drains instantly), playback worker
// included. Use it for end-to-end scenarios that need the worker.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(DefaultConfig())
	e.pcm = backend.NewNoop()
	e.ac3 = backend.NewNoop()
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { e.Exit() })
	return e
}

// newStoppedEngine builds an Engine with a probed capability matrix but no
// playback worker, so the producer API can be driven deterministically: no
// goroutine consumes slots or flips running behind the test's back.
func newStoppedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(DefaultConfig())
	e.pcm = backend.NewNoop()
	e.ac3 = backend.NewNoop()
	e.cap = probe(e.pcm)
	return e
}

// parked simulates the worker having woken on Setup's signal and gone back
// to waiting: the real worker clears running at its gate.
func parked(e *Engine) {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func isRunning(e *Engine) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func TestSetupRejectsUnsupportedRate(t *testing.T) {
	e := newStoppedEngine(t)
	result, err := e.Setup(22050, 2, false)
	if result != SetupFail || err != ErrUnsupportedFormat {
		t.Fatalf("Setup(22050, ...) = (%d, %v), want (SetupFail, ErrUnsupportedFormat)", result, err)
	}
}

func TestSetupRejectsBadArgument(t *testing.T) {
	e := newStoppedEngine(t)
	if result, err := e.Setup(0, 2, false); result != SetupFail || err != ErrBadArgument {
		t.Fatalf("Setup(rate=0) = (%d, %v), want (SetupFail, ErrBadArgument)", result, err)
	}
	if result, err := e.Setup(48000, 0, false); result != SetupFail || err != ErrBadArgument {
		t.Fatalf("Setup(channels=0) = (%d, %v), want (SetupFail, ErrBadArgument)", result, err)
	}
}

// TestRingFullBackpressure is scenario 6: eight consecutive Setup calls
// without worker progress fill the ring; the ninth fails with ring_full.
func TestRingFullBackpressure(t *testing.T) {
	e := newStoppedEngine(t)

	for i := 0; i < maxSlots; i++ {
		if result, err := e.Setup(48000, 2, false); result != SetupOK || err != nil {
			t.Fatalf("Setup #%d = (%d, %v), want (SetupOK, nil)", i+1, result, err)
		}
	}
	result, err := e.Setup(48000, 2, false)
	if result != SetupFail || err != ErrRingFull {
		t.Fatalf("9th Setup = (%d, %v), want (SetupFail, ErrRingFull)", result, err)
	}
}

// TestWarmStart is scenario 1: GetClock is NoPTS before playback starts, and
// the start condition fires once well over 4x the start threshold of silence
// has been buffered.
func TestWarmStart(t *testing.T) {
	e := newStoppedEngine(t)
	if result, err := e.Setup(48000, 2, false); result != SetupOK || err != nil {
		t.Fatalf("Setup: (%d, %v)", result, err)
	}
	parked(e)

	if pts := e.GetClock(); pts != NoPTS {
		t.Errorf("GetClock before running = %d, want NoPTS", pts)
	}

	silence := make([]byte, 192000)
	if err := e.Enqueue(silence, len(silence)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if !isRunning(e) {
		t.Error("running = false after enqueueing well above 4x start threshold")
	}
}

// TestFormatChangeAddsSecondSlot is scenario 2's producer half: a second
// Setup introduces a new slot and Filled reflects both until the worker
// advances.
func TestFormatChangeAddsSecondSlot(t *testing.T) {
	e := newStoppedEngine(t)
	e.Setup(48000, 2, false)
	e.Enqueue(make([]byte, 1000), 1000)

	if result, err := e.Setup(44100, 6, false); err != nil || result == SetupFail {
		t.Fatalf("second Setup: (%d, %v)", result, err)
	}

	if got := e.pipeline.Filled(); got != 2 {
		t.Fatalf("Filled() = %d, want 2 with old slot undrained and a new one queued", got)
	}
}

// TestFormatChangeDrainsThenSwitches is scenario 2's worker half: with the
// worker live, the 48kHz slot drains first, the backend is reconfigured, and
// the pipeline ends up on the 44.1kHz slot with nothing queued behind it.
func TestFormatChangeDrainsThenSwitches(t *testing.T) {
	e := newTestEngine(t)
	e.Setup(48000, 2, false)
	e.Enqueue(make([]byte, 19200), 19200) // 100ms of 48kHz stereo
	e.Setup(44100, 6, false)
	e.Enqueue(make([]byte, 52920), 52920) // 100ms of 44.1kHz 5.1

	e.mu.Lock()
	e.startLocked()
	e.mu.Unlock()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		rate := e.pipeline.ReadSlot().HWRate
		filled := e.pipeline.Filled()
		e.mu.Unlock()
		if rate == 44100 && filled == 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("worker never switched the read slot to the 44.1kHz format")
}

// TestFlushBuffersDrainsRing is scenario 3: a mid-stream FlushBuffers leaves
// the ring empty, the read slot's buffer drained, and the worker parked.
func TestFlushBuffersDrainsRing(t *testing.T) {
	e := newTestEngine(t)
	e.Setup(48000, 2, false)
	threshold := e.pipeline.WriteSlot().StartThreshold
	e.Enqueue(make([]byte, 4*threshold+4), 4*threshold+4)

	if err := e.FlushBuffers(); err != nil {
		t.Fatalf("FlushBuffers: %v", err)
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		filled := e.pipeline.Filled()
		used := e.pipeline.ReadSlot().Buffer.AvailableRead()
		running := e.running
		e.mu.Unlock()
		if filled == 0 && used == 0 && !running {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("pipeline never drained to an empty, parked state after FlushBuffers")
}

// TestVideoReadySkipsLateAudio is scenario 5: when video turns out to be
// ahead of the buffered audio, VideoReady drops the stale head of the buffer
// and starts playback.
func TestVideoReadySkipsLateAudio(t *testing.T) {
	e := newStoppedEngine(t)
	e.Setup(48000, 2, false)
	parked(e)
	e.SetClock(90000)

	audio := make([]byte, 96000) // 500ms of 48kHz stereo
	if err := e.Enqueue(audio, len(audio)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if isRunning(e) {
		t.Fatal("engine started before VideoReady despite video_ready being false")
	}

	// skip = video_pts - 15*20*90 - bufferTime*90 - audio_pts; with
	// audio_pts = 90000 and the default 200ms buffer time, a video_pts of
	// 153000 yields a 200ms (18000 tick) skip.
	e.VideoReady(153000)

	slot := e.pipeline.WriteSlot()
	wantDropped := uint64(ticksToBytes(18000, 48000, 2))
	if used := slot.Buffer.AvailableRead(); used != uint64(len(audio))-wantDropped {
		t.Errorf("used = %d, want %d after dropping 200ms from the head", used, uint64(len(audio))-wantDropped)
	}
	if !isRunning(e) {
		t.Error("running = false, want true once the post-skip backlog clears the start threshold")
	}
}

// TestSetVolumeSoftvolStereoDescent is the invariant: with software volume
// and a stereo descent configured, a 2-channel non-AC3 slot's effective
// amplifier gain is clamp(v-d, 0, 1000).
func TestSetVolumeSoftvolStereoDescent(t *testing.T) {
	e := newStoppedEngine(t)
	e.SetSoftvol(true)
	e.SetStereoDescent(300)
	e.SetVolume(1000)
	e.Setup(48000, 2, false)

	// A packet loud enough that clamp_i16 isn't already saturating it, so
	// the gain's effect on magnitude is observable.
	loud := int16ToBytes([]int16{10000, 10000, 10000, 10000})
	if err := e.Enqueue(loud, len(loud)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	rb := e.pipeline.WriteSlot().Buffer
	out := make([]byte, len(loud))
	n, err := rb.Read(out)
	if err != nil || n != len(out) {
		t.Fatalf("read back enqueued bytes: n=%d err=%v", n, err)
	}
	got := bytesToInt16(out)
	want := int16(10000 * 700 / 1000)
	for i, v := range got {
		if v != want {
			t.Errorf("sample %d = %d, want %d (gain clamp(1000-300)=700)", i, v, want)
		}
	}
}

// TestEnqueueAdvancesPTS is the PTS invariant: consecutive enqueues advance
// the write slot's timestamp by exactly the remixed byte count's duration.
func TestEnqueueAdvancesPTS(t *testing.T) {
	e := newStoppedEngine(t)
	e.Setup(48000, 2, false)
	e.SetClock(0)

	oneSecond := make([]byte, 48000*2*2)
	if err := e.Enqueue(oneSecond, len(oneSecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if pts := e.pipeline.WriteSlot().PTS; pts != 90000 {
		t.Errorf("PTS after one second of stereo = %d, want 90000", pts)
	}
}

func TestGetClockReflectsBufferedBacklog(t *testing.T) {
	e := newStoppedEngine(t)
	e.Setup(48000, 2, false)
	e.pipeline.Advance() // simulate the worker having taken the slot
	e.SetClock(90000)

	quarterSecond := make([]byte, 48000) // 250ms of 48kHz stereo
	if err := e.Enqueue(quarterSecond, len(quarterSecond)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	// The noop backend reports zero device delay, so the clock is the slot
	// PTS minus only the queued bytes' duration.
	want := int64(90000+22500) - 22500
	if got := e.GetClock(); got != want {
		t.Errorf("GetClock() = %d, want %d", got, want)
	}
}

func TestGetClockNoPTSWhileTransitionInFlight(t *testing.T) {
	e := newStoppedEngine(t)
	e.Setup(48000, 2, false)
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	if got := e.GetClock(); got != NoPTS {
		t.Errorf("GetClock() with filled>0 = %d, want NoPTS", got)
	}
}

func TestVideoReadyNoPTSSetsFlagOnly(t *testing.T) {
	e := newStoppedEngine(t)
	e.Setup(48000, 2, false)
	e.VideoReady(NoPTS)

	e.mu.Lock()
	ready := e.videoReady
	e.mu.Unlock()
	if !ready {
		t.Error("videoReady = false after VideoReady(NoPTS)")
	}
}

// failingInitBackend is a minimal Backend stub whose Init always fails, used
// to exercise Engine.Init's noop fallback without depending on a real
// device's open-failure behavior.
type failingInitBackend struct{ backend.Backend }

func (failingInitBackend) Init() error { return ErrBackendOpenFailed }

// TestNewEngineUsesNoopWhenDeviceMissing exercises the Init fallback path: a
// backend whose Init fails degrades to the noop backend rather than failing
// engine construction outright.
func TestNewEngineUsesNoopWhenDeviceMissing(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	e.pcm = failingInitBackend{backend.NewNoop()}

	if err := e.Init(); err != nil {
		t.Fatalf("Init should fall back to noop rather than fail: %v", err)
	}
	defer e.Exit()

	if _, ok := e.pcm.(*backend.Noop); !ok {
		t.Errorf("pcm backend = %T, want fallback to *backend.Noop", e.pcm)
	}
}
