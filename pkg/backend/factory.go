package backend

import (
	"os"
	"strconv"
)

// NewForDevice resolves an opaque device name into a concrete backend:
// empty consults the AUDIODEV environment variable and then selects Noop, a
// "/"-prefixed name selects the OSS-style backend (Linux only; falls back
// to Noop elsewhere), and anything else is parsed as a PortAudio device
// index.
func NewForDevice(name string) Backend {
	if name == "" {
		name = os.Getenv("AUDIODEV")
	}
	if name == "" {
		return NewNoop()
	}
	if name[0] == '/' {
		return newOSSOrNoop(name)
	}
	idx, err := strconv.Atoi(name)
	if err != nil {
		return NewNoop()
	}
	return NewPortAudio(idx)
}
