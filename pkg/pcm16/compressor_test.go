package pcm16

import "testing"

func TestCompressorSilencePacketNoop(t *testing.T) {
	c := NewCompressor(2000)
	s := []int16{0, 0, 0}
	c.Apply(s)
	for _, v := range s {
		if v != 0 {
			t.Fatalf("silent packet should stay silent, got %d", v)
		}
	}
}

func TestCompressorNeverExceedsPeakTarget(t *testing.T) {
	c := NewCompressor(5000)
	s := []int16{16000, -8000, 4000}

	peak := int32(16000)
	wantTarget := int(32767 * 1000 / peak)

	c.Apply(s)
	if c.cur > wantTarget {
		t.Errorf("cur %d exceeds peak-derived target %d", c.cur, wantTarget)
	}
}

func TestCompressorResetMatchesMaxCompressionCeiling(t *testing.T) {
	c := NewCompressor(1500)
	c.cur = 1900
	c.Reset()
	if c.cur != 1500 {
		t.Errorf("after reset, cur = %d, want min(2000, maxCompression) = 1500", c.cur)
	}
}

func TestCompressorConvergesAcrossPackets(t *testing.T) {
	c := NewCompressor(3000)
	prev := c.cur
	for i := 0; i < 50; i++ {
		s := []int16{30000, -30000}
		c.Apply(s)
		if c.cur > prev+1 {
			t.Fatalf("cur grew unexpectedly: prev=%d cur=%d", prev, c.cur)
		}
		prev = c.cur
	}
}
