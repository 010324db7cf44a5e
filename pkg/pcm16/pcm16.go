// Package pcm16 implements the sample-domain filters (amplifier, compressor,
// normalizer, channel remix) applied to interleaved 16-bit signed PCM on its
// way from the producer into a pipeline slot.
package pcm16

// clampI16 saturates a wider-than-16-bit accumulator to the int16 range.
func clampI16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
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
