// Package backend defines the pluggable output device abstraction and its
// concrete implementations: a PortAudio-backed device for ordinary names, a
// raw OSS ioctl device for "/"-prefixed names, and an inert noop fallback.
package backend

import "context"

// SetupResult reports the outcome of a format request.
type SetupResult int

const (
	// SetupOK means the backend accepted the requested rate and channels.
	SetupOK SetupResult = iota
	// SetupDowngraded means the backend could not honor the request and
	// instead negotiated the rate/channels returned alongside this result;
	// the caller must adapt to them.
	SetupDowngraded
	// SetupFail means the backend could not be configured at all.
	SetupFail
)

// ThreadResult reports the outcome of one bounded backend iteration.
type ThreadResult int

const (
	// ThreadRunning means the iteration made progress (or had nothing to
	// report) and the worker should call Thread again.
	ThreadRunning ThreadResult = iota
	// ThreadUnderrun means the source had no data available; this is the
	// routine signal that the worker should advance to the next slot.
	ThreadUnderrun
	// ThreadError means the device faulted; the worker treats it as fatal,
	// waits ~24ms, reopens the device through Setup, and calls Thread again.
	ThreadError
)

// ByteSource is the minimal read side of a pipeline slot's ring buffer that a
// backend needs to drive device writes without copying.
type ByteSource interface {
	PeekContiguous() []byte
	Consume(n uint64) error
	AvailableRead() uint64
}

// Backend is a pluggable output device. All methods are safe to call
// repeatedly; Setup in particular must be callable across format changes and
// is expected to close and reopen the device handle each time.
type Backend interface {
	// Init acquires the device. Idempotent.
	Init() error
	// Exit releases the device. Idempotent.
	Exit() error
	// Setup requests a playback format. On SetupDowngraded the returned
	// rate/channels are what the backend actually accepted.
	Setup(rate, channels int, useAC3 bool) (result SetupResult, actualRate, actualChannels int, err error)
	// Play resumes the device clock.
	Play() error
	// Pause suspends the device clock.
	Pause() error
	// FlushBuffers drops any pending device-side samples and returns the
	// device to a prepared, silent state.
	FlushBuffers() error
	// GetDelay reports, in units of 1/90000s, samples held by the device
	// that have not yet been heard.
	GetDelay() int64
	// SetVolume sets the hardware mixer, 0..1000. No-op if software volume
	// is active upstream.
	SetVolume(v int) error
	// Thread performs one bounded (<=24ms) iteration of device work: wait
	// for buffer space, then push as much of src as fits. It must honor
	// ctx cancellation at the top of the iteration.
	Thread(ctx context.Context, src ByteSource) (ThreadResult, error)
}
