package pcm16

// RemixInto converts an interleaved int16 packet from inCh channels to outCh
// channels, reusing dst's backing array when it is large enough. Equal
// channel counts are a straight copy. Supported up/downmixes follow a fixed
// integer-weighted coefficient table (per-mille weights); 5→6 upmixes by
// inserting a silent LFE channel. Any other combination has no defined remix
// and returns silence of the requested output length instead of aborting.
//
// Channel order follows the device layout for each count:
//
//	1: M
//	2: L R
//	3: L R C
//	4: L R Ls Rs
//	5: L R Ls Rs C
//	6: L R Ls Rs C LFE
//	7: L R Ls Rs C RL RR
//	8: L R Ls Rs C LFE RL RR
func RemixInto(dst, in []int16, inCh, outCh int) []int16 {
	if inCh <= 0 || outCh <= 0 || len(in)%inCh != 0 {
		return nil
	}
	frames := len(in) / inCh
	need := frames * outCh
	if cap(dst) < need {
		dst = make([]int16, need)
	}
	out := dst[:need]

	if inCh == outCh {
		copy(out, in)
		return out
	}

	switch {
	case inCh == 2 && outCh == 1:
		for f := 0; f < frames; f++ {
			l, r := int32(in[f*2]), int32(in[f*2+1])
			out[f] = clampI16((l + r) / 2)
		}
	case inCh == 1 && outCh == 2:
		for f := 0; f < frames; f++ {
			m := in[f]
			out[f*2] = m
			out[f*2+1] = m
		}
	case inCh == 3 && outCh == 2:
		for f := 0; f < frames; f++ {
			l, r, c := int32(in[f*3]), int32(in[f*3+1]), int32(in[f*3+2])
			out[f*2] = clampI16((600*l + 400*c) / 1000)
			out[f*2+1] = clampI16((600*r + 400*c) / 1000)
		}
	case inCh == 4 && outCh == 2:
		for f := 0; f < frames; f++ {
			l, r, ls, rs := int32(in[f*4]), int32(in[f*4+1]), int32(in[f*4+2]), int32(in[f*4+3])
			out[f*2] = clampI16((600*l + 400*ls) / 1000)
			out[f*2+1] = clampI16((600*r + 400*rs) / 1000)
		}
	case inCh == 5 && outCh == 2:
		for f := 0; f < frames; f++ {
			l, r := int32(in[f*5]), int32(in[f*5+1])
			ls, rs, c := int32(in[f*5+2]), int32(in[f*5+3]), int32(in[f*5+4])
			out[f*2] = clampI16((500*l + 200*ls + 300*c) / 1000)
			out[f*2+1] = clampI16((500*r + 200*rs + 300*c) / 1000)
		}
	case inCh == 6 && outCh == 2:
		for f := 0; f < frames; f++ {
			l, r := int32(in[f*6]), int32(in[f*6+1])
			ls, rs := int32(in[f*6+2]), int32(in[f*6+3])
			c, lfe := int32(in[f*6+4]), int32(in[f*6+5])
			out[f*2] = clampI16((400*l + 200*ls + 300*c + 300*lfe) / 1000)
			out[f*2+1] = clampI16((400*r + 200*rs + 300*c + 100*lfe) / 1000)
		}
	case inCh == 7 && outCh == 2:
		for f := 0; f < frames; f++ {
			l, r := int32(in[f*7]), int32(in[f*7+1])
			ls, rs, c := int32(in[f*7+2]), int32(in[f*7+3]), int32(in[f*7+4])
			rl, rr := int32(in[f*7+5]), int32(in[f*7+6])
			out[f*2] = clampI16((400*l + 200*ls + 300*c + 100*rl) / 1000)
			out[f*2+1] = clampI16((400*r + 200*rs + 300*c + 100*rr) / 1000)
		}
	case inCh == 8 && outCh == 2:
		for f := 0; f < frames; f++ {
			l, r := int32(in[f*8]), int32(in[f*8+1])
			ls, rs := int32(in[f*8+2]), int32(in[f*8+3])
			c, lfe := int32(in[f*8+4]), int32(in[f*8+5])
			rl, rr := int32(in[f*8+6]), int32(in[f*8+7])
			out[f*2] = clampI16((400*l + 150*ls + 250*c + 100*lfe + 100*rl) / 1000)
			out[f*2+1] = clampI16((400*r + 150*rs + 250*c + 100*lfe + 100*rr) / 1000)
		}
	case inCh == 5 && outCh == 6:
		for f := 0; f < frames; f++ {
			copy(out[f*6:f*6+5], in[f*5:f*5+5]) // L R Ls Rs C
			out[f*6+5] = 0                      // LFE
		}
	default:
		// No defined remix for this combination: emit silence rather than abort.
		for i := range out {
			out[i] = 0
		}
	}

	return out
}

// Remix is RemixInto with a freshly allocated destination.
func Remix(in []int16, inCh, outCh int) []int16 {
	return RemixInto(nil, in, inCh, outCh)
}
