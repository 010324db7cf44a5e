package engine

import "github.com/hdaudio/avengine/pkg/backend"

// supportedRates is the static supported-rates table AddSlot consults.
var supportedRates = []int{44100, 48000}

// SupportedRates returns the sample rates the engine accepts, for callers
// that prepare or validate feeder material up front.
func SupportedRates() []int {
	rates := make([]int, len(supportedRates))
	copy(rates, supportedRates)
	return rates
}

// fallbackOrder gives, for each requested channel count, the search order
// used when that exact count isn't supported at a given rate. It is a
// literal completion of the cells spec.md names directly (1->2, 2->4->5->
// 6->7->8, 3->4->..., 8->6->2->1): prefer nearby richer layouts before
// collapsing toward stereo or mono.
var fallbackOrder = map[int][]int{
	1: {2},
	2: {4, 5, 6, 7, 8, 1},
	3: {4, 5, 6, 7, 8, 2, 1},
	4: {5, 6, 7, 8, 2, 1},
	5: {6, 4, 7, 8, 2, 1},
	6: {7, 8, 4, 5, 2, 1},
	7: {8, 4, 5, 6, 2, 1},
	8: {6, 2, 1, 4, 5, 7},
}

// capability records, per supported rate, which channel counts the backend
// accepted during the init-time probe, and the resulting 9-entry (index
// 1..8) channel-remap vector AddSlot consults.
type capability struct {
	remap map[int][9]int // rate -> remap[c] for c in 1..8
}

// probe calls backend.Setup across every (rate, channels) combination and
// builds the remap vector for each rate. It leaves the backend configured
// to whatever the last probe call requested; callers must Setup() again
// before playback begins.
func probe(b backend.Backend) *capability {
	cap := &capability{remap: make(map[int][9]int)}

	for _, rate := range supportedRates {
		var supported [9]bool
		for ch := 1; ch <= 8; ch++ {
			result, _, _, err := b.Setup(rate, ch, false)
			if err == nil && result != backend.SetupFail {
				supported[ch] = true
			}
		}

		var remap [9]int
		for c := 1; c <= 8; c++ {
			if supported[c] {
				remap[c] = c
				continue
			}
			for _, alt := range fallbackOrder[c] {
				if supported[alt] {
					remap[c] = alt
					break
				}
			}
		}
		cap.remap[rate] = remap
	}

	return cap
}

// resolve looks up the hardware channel count for a requested rate and
// input channel count. Returns 0 if the rate is unsupported or no fallback
// exists.
func (c *capability) resolve(rate, channels int) int {
	if channels < 1 || channels > 8 {
		return 0
	}
	remap, ok := c.remap[rate]
	if !ok {
		return 0
	}
	return remap[channels]
}

func rateSupported(rate int) bool {
	for _, r := range supportedRates {
		if r == rate {
			return true
		}
	}
	return false
}
