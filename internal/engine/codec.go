package engine

// bytesToInt16Into reinterprets a little-endian interleaved PCM buffer as
// signed 16-bit samples, reusing dst's backing array when it is large
// enough. The result never aliases buf, so filters can mutate it in place
// without touching the caller's bytes.
func bytesToInt16Into(dst []int16, buf []byte) []int16 {
	need := len(buf) / 2
	if cap(dst) < need {
		dst = make([]int16, need)
	}
	out := dst[:need]
	for i := range out {
		out[i] = int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
	}
	return out
}

// int16ToBytesInto serializes signed 16-bit samples to little-endian bytes,
// reusing dst's backing array when it is large enough.
func int16ToBytesInto(dst []byte, samples []int16) []byte {
	need := len(samples) * 2
	if cap(dst) < need {
		dst = make([]byte, need)
	}
	out := dst[:need]
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// bytesToInt16 is bytesToInt16Into with a freshly allocated destination.
func bytesToInt16(buf []byte) []int16 {
	return bytesToInt16Into(nil, buf)
}

// int16ToBytes is int16ToBytesInto with a freshly allocated destination.
func int16ToBytes(samples []int16) []byte {
	return int16ToBytesInto(nil, samples)
}
