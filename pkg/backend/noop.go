package backend

import (
	"context"
	"time"
)

// Noop is the sentinel backend bound when no device name is configured, or
// when init of the requested backend fails. It accepts every format and
// discards every sample instantly, so the pipeline behaves as if audio were
// playing at infinite speed.
type Noop struct{}

// NewNoop returns a ready-to-use Noop backend.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Init() error { return nil }
func (n *Noop) Exit() error { return nil }

func (n *Noop) Setup(rate, channels int, useAC3 bool) (SetupResult, int, int, error) {
	return SetupOK, rate, channels, nil
}

func (n *Noop) Play() error           { return nil }
func (n *Noop) Pause() error          { return nil }
func (n *Noop) FlushBuffers() error   { return nil }
func (n *Noop) GetDelay() int64       { return 0 }
func (n *Noop) SetVolume(v int) error { return nil }

func (n *Noop) Thread(ctx context.Context, src ByteSource) (ThreadResult, error) {
	select {
	case <-ctx.Done():
		return ThreadRunning, ctx.Err()
	default:
	}

	available := src.AvailableRead()
	if available == 0 {
		time.Sleep(time.Millisecond)
		return ThreadUnderrun, nil
	}

	if err := src.Consume(available); err != nil {
		return ThreadError, err
	}
	return ThreadRunning, nil
}
