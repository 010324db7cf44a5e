package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hdaudio/avengine/pkg/backend"
)

// Worker drives one pipeline's read side against a backend. It owns no
// goroutine of its own: Run is started by Engine, and gate is Engine's hook
// back into the running/paused handshake so Worker stays testable without a
// full Engine.
type Worker struct {
	pipeline *Pipeline
	pcm      backend.Backend
	ac3      backend.Backend
	log      *slog.Logger

	// gate blocks until the worker should resume iterating or ctx is done
	// (false). Engine wires this to its running condition variable.
	gate func(ctx context.Context) bool

	// paused reports the producer's suspend flag; Step early-returns to the
	// gate while it is set.
	paused func() bool

	// onReset clears the producer-side filter state at slot transitions.
	onReset func()
}

// NewWorker builds a Worker bound to the given pipeline and backends.
func NewWorker(p *Pipeline, pcm, ac3 backend.Backend, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{pipeline: p, pcm: pcm, ac3: ac3, log: log}
}

func (w *Worker) backendFor(slot *Slot) backend.Backend {
	if slot.UseAC3 {
		return w.ac3
	}
	return w.pcm
}

// advance moves the read cursor per the slot-transition protocol: jump to
// the newest queued flush marker if one exists (consuming every marker along
// the way) or to the next slot otherwise, flush the device if a marker was
// consumed, reconfigure the backend when the hardware format changed, and
// reset the filter state. old is nil when leaving the bootstrap placeholder,
// which always forces a backend setup.
func (w *Worker) advance(old *Slot) (advanced, wait bool, err error) {
	steps := w.pipeline.FlushDistance()
	flush := steps > 0
	if steps == 0 {
		steps = 1
	}

	var next *Slot
	for i := 0; i < steps; i++ {
		next = w.pipeline.Advance()
		next.FlushBuffers = false
	}

	if flush {
		if ferr := w.backendFor(next).FlushBuffers(); ferr != nil {
			w.log.Warn("backend flush failed", "err", ferr)
		}
	}

	if old == nil || !next.sameFormat(old) {
		if serr := w.applyFormat(next); serr != nil {
			return true, false, serr
		}
	}
	if w.onReset != nil {
		w.onReset()
	}

	if next.Buffer.AvailableRead() < uint64(next.StartThreshold) {
		return true, true, nil
	}
	return true, false, nil
}

// Step performs one bounded iteration. advanced reports whether the read
// slot moved; wait reports whether the caller should return to the outer
// gate (paused, nothing left to drain, or the new slot is below its start
// threshold).
func (w *Worker) Step(ctx context.Context) (advanced, wait bool, err error) {
	if w.paused != nil && w.paused() {
		return false, true, nil
	}

	slot := w.pipeline.ReadSlot()
	if slot.HWRate == 0 {
		// AddSlot always pre-increments write before initializing the new
		// slot, so the very first Setup ever made leaves the read slot
		// pointing at an untouched placeholder one index behind the real
		// data. Filled()==0 means there is genuinely nothing queued yet;
		// Filled()>0 means a real slot is waiting one Advance away.
		if w.pipeline.Filled() == 0 {
			return false, true, nil
		}
		return w.advance(nil)
	}

	result, terr := w.backendFor(slot).Thread(ctx, slot.Buffer)

	switch result {
	case backend.ThreadRunning:
		return false, false, nil

	case backend.ThreadUnderrun:
		if w.pipeline.Filled() == 0 {
			return false, true, nil
		}
		return w.advance(slot)

	case backend.ThreadError:
		return false, false, errors.Join(ErrBackendFatal, terr)

	default:
		return false, false, terr
	}
}

func (w *Worker) applyFormat(slot *Slot) error {
	result, rate, channels, err := w.backendFor(slot).Setup(slot.HWRate, slot.HWChannels, slot.UseAC3)
	if err != nil {
		return errors.Join(ErrBackendOpenFailed, err)
	}
	if result == backend.SetupFail {
		return ErrBackendOpenFailed
	}
	if result == backend.SetupDowngraded {
		w.log.Info("backend downgraded format",
			"requested_rate", slot.HWRate, "requested_channels", slot.HWChannels,
			"rate", rate, "channels", channels)
	}
	slot.HWRate, slot.HWChannels = rate, channels
	return nil
}

// Run loops until ctx is cancelled: wait at the gate for running, then
// iterate Step until it signals wait (paused, drained with nothing queued,
// or below threshold after advancing). Errors never propagate to the caller:
// the worker logs, waits ~24ms, reopens the device on a fatal fault, and
// keeps going.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if w.gate != nil && !w.gate(ctx) {
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			_, wait, err := w.Step(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.log.Warn("playback iteration failed, retrying", "err", err)
				time.Sleep(24 * time.Millisecond)
				if errors.Is(err, ErrBackendFatal) {
					if slot := w.pipeline.ReadSlot(); slot.HWRate != 0 {
						if serr := w.applyFormat(slot); serr != nil {
							w.log.Error("backend recovery failed", "err", serr)
						}
					}
				}
				continue
			}
			if wait {
				break
			}
		}
	}
}
