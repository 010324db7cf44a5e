package engine

import "math"

// NoPTS is the sentinel for an undefined or invalidated timestamp.
const NoPTS int64 = math.MinInt64

// bytesPerSample is fixed at 16-bit PCM throughout the engine; AC3
// passthrough bytes are opaque but clocked against the same assumption,
// matching the producer's packet sizing.
const bytesPerSample = 2

// bytesToTicks converts a byte count in the given hardware format to PTS
// ticks (units of 1/90000s).
func bytesToTicks(bytes, rate, channels int) int64 {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	denom := int64(rate) * int64(channels) * bytesPerSample
	return int64(bytes) * 90000 / denom
}

// ticksToBytes converts PTS ticks to a byte count, rounded down to a whole
// frame (channels*bytesPerSample).
func ticksToBytes(ticks int64, rate, channels int) int64 {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	frameBytes := int64(channels) * bytesPerSample
	frames := ticks * int64(rate) / 90000
	return frames * frameBytes
}
