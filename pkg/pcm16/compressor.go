package pcm16

// Compressor is a look-ahead-free, per-packet peak compressor. It tracks a
// smoothed gain factor (per-mille) across packets via an EWMA and never lets
// that factor exceed the most recent packet's peak-derived target, so it
// cannot introduce clipping on its own.
type Compressor struct {
	MaxCompression int // per-mille ceiling

	cur int // per-mille, current smoothed factor
}

// NewCompressor returns a Compressor ready to use; its smoothed factor
// starts at the same value Reset would produce.
func NewCompressor(maxCompression int) *Compressor {
	c := &Compressor{MaxCompression: maxCompression}
	c.Reset()
	return c
}

// Reset restores the compressor's initial smoothed factor.
func (c *Compressor) Reset() {
	c.cur = min(2000, c.MaxCompression)
}

// Apply compresses samples in place.
func (c *Compressor) Apply(samples []int16) {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return
	}

	target := int(32767 * 1000 / peak)
	c.cur = (c.cur*950 + target*50) / 1000
	c.cur = min(c.cur, target, c.MaxCompression)

	for i, s := range samples {
		samples[i] = clampI16(int32(s) * int32(c.cur) / 1000)
	}
}
