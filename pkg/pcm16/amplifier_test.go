package pcm16

import "testing"

func TestAmplifierMute(t *testing.T) {
	a := &Amplifier{Mute: true, Gain: 1000}
	s := []int16{100, -200, 32767}
	a.Apply(s)
	for i, v := range s {
		if v != 0 {
			t.Errorf("sample %d: got %d, want 0", i, v)
		}
	}
}

func TestAmplifierZeroGain(t *testing.T) {
	a := &Amplifier{Gain: 0}
	s := []int16{100, -200}
	a.Apply(s)
	for i, v := range s {
		if v != 0 {
			t.Errorf("sample %d: got %d, want 0", i, v)
		}
	}
}

func TestAmplifierUnity(t *testing.T) {
	a := &Amplifier{Gain: 1000}
	s := []int16{100, -200, 32000}
	want := []int16{100, -200, 32000}
	a.Apply(s)
	for i := range s {
		if s[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, s[i], want[i])
		}
	}
}

func TestAmplifierDoubleGainClamps(t *testing.T) {
	a := &Amplifier{Gain: 2000}
	s := []int16{20000}
	a.Apply(s)
	if s[0] != 32767 {
		t.Errorf("got %d, want clamp to 32767", s[0])
	}
}
