package engine

import (
	"context"
	"testing"

	"github.com/hdaudio/avengine/pkg/backend"
)

// fakeBackend accepts only a fixed set of (rate, channels) tuples, letting
// tests exercise the capability probe's fallback search deterministically.
type fakeBackend struct {
	accepted map[[2]int]bool
}

func newFakeBackend(accepted ...[2]int) *fakeBackend {
	f := &fakeBackend{accepted: make(map[[2]int]bool)}
	for _, a := range accepted {
		f.accepted[a] = true
	}
	return f
}

func (f *fakeBackend) Init() error { return nil }
func (f *fakeBackend) Exit() error { return nil }

func (f *fakeBackend) Setup(rate, channels int, useAC3 bool) (backend.SetupResult, int, int, error) {
	if f.accepted[[2]int{rate, channels}] {
		return backend.SetupOK, rate, channels, nil
	}
	return backend.SetupFail, 0, 0, nil
}

func (f *fakeBackend) Play() error           { return nil }
func (f *fakeBackend) Pause() error          { return nil }
func (f *fakeBackend) FlushBuffers() error   { return nil }
func (f *fakeBackend) GetDelay() int64       { return 0 }
func (f *fakeBackend) SetVolume(v int) error { return nil }

func (f *fakeBackend) Thread(ctx context.Context, src backend.ByteSource) (backend.ThreadResult, error) {
	return backend.ThreadUnderrun, nil
}

func TestCapabilityProbeExactMatch(t *testing.T) {
	fb := newFakeBackend([2]int{48000, 2}, [2]int{48000, 6})
	cap := probe(fb)
	if got := cap.resolve(48000, 6); got != 6 {
		t.Errorf("resolve(48000, 6) = %d, want 6", got)
	}
	if got := cap.resolve(48000, 2); got != 2 {
		t.Errorf("resolve(48000, 2) = %d, want 2", got)
	}
}

func TestCapabilityProbeFallsBackToStereo(t *testing.T) {
	fb := newFakeBackend([2]int{48000, 2})
	cap := probe(fb)
	if got := cap.resolve(48000, 6); got != 2 {
		t.Errorf("resolve(48000, 6) with only stereo supported = %d, want 2 (fallback)", got)
	}
	if got := cap.resolve(48000, 1); got != 2 {
		t.Errorf("resolve(48000, 1) = %d, want 2 (1's only fallback)", got)
	}
}

func TestCapabilityProbeUnsupportedRate(t *testing.T) {
	fb := newFakeBackend([2]int{48000, 2})
	cap := probe(fb)
	if got := cap.resolve(44100, 2); got != 0 {
		t.Errorf("resolve(44100, 2) with nothing accepted at 44100 = %d, want 0", got)
	}
}
