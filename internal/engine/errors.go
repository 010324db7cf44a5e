package engine

import "errors"

// Error kinds surfaced to producer-facing calls. The worker never propagates
// these upward: it logs, retries where recovery is possible, and falls back
// to the noop backend only at Init if the requested backend cannot open.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrBackendOpenFailed = errors.New("backend open failed")
	ErrBackendFatal      = errors.New("backend fatal")
	ErrRingFull          = errors.New("ring full")
	ErrBadArgument       = errors.New("bad argument")
)
