package backend

import (
	"context"
	"testing"

	"github.com/hdaudio/avengine/pkg/ringbuffer"
)

func TestNoopSetupAlwaysAccepts(t *testing.T) {
	n := NewNoop()
	result, rate, channels, err := n.Setup(48000, 6, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != SetupOK || rate != 48000 || channels != 6 {
		t.Errorf("got (%v, %d, %d), want (SetupOK, 48000, 6)", result, rate, channels)
	}
}

func TestNoopThreadUnderrunsOnEmptySource(t *testing.T) {
	n := NewNoop()
	rb := ringbuffer.New(1024)

	result, err := n.Thread(context.Background(), rb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != ThreadUnderrun {
		t.Errorf("got %v, want ThreadUnderrun", result)
	}
}

func TestNoopThreadDrainsSourceInstantly(t *testing.T) {
	n := NewNoop()
	rb := ringbuffer.New(1024)
	rb.Write(make([]byte, 256))

	result, err := n.Thread(context.Background(), rb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != ThreadRunning {
		t.Errorf("got %v, want ThreadRunning", result)
	}
	if rb.AvailableRead() != 0 {
		t.Errorf("AvailableRead = %d, want 0 after noop drain", rb.AvailableRead())
	}
}

func TestNoopThreadHonorsCancellation(t *testing.T) {
	n := NewNoop()
	rb := ringbuffer.New(1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Thread(ctx, rb)
	if err == nil {
		t.Error("expected context cancellation error")
	}
}

func TestNoopGetDelayIsZero(t *testing.T) {
	n := NewNoop()
	if n.GetDelay() != 0 {
		t.Errorf("GetDelay() = %d, want 0", n.GetDelay())
	}
}
