package pcm16

// Amplifier applies a per-mille gain to an interleaved int16 packet in place,
// or silences it outright when muted or the gain is zero.
type Amplifier struct {
	Mute bool
	Gain int // per-mille, 1000 == unity
}

// Apply scales every sample in place.
func (a *Amplifier) Apply(samples []int16) {
	if a.Mute || a.Gain == 0 {
		for i := range samples {
			samples[i] = 0
		}
		return
	}
	for i, s := range samples {
		samples[i] = clampI16(int32(s) * int32(a.Gain) / 1000)
	}
}
