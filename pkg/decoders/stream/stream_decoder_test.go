package stream

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func s16leFormat(rate, channels int) Format {
	return Format{SampleRate: rate, Channels: channels, BytesPerSample: 2}
}

func TestRawReaderDeliversWholeFrames(t *testing.T) {
	// 3 stereo frames plus 1 trailing odd byte that can never complete a frame.
	src := bytes.NewReader(make([]byte, 3*4+1))
	r := NewRawReader(src, s16leFormat(48000, 2))

	pkt, err := r.ReadPacket(context.Background(), 8)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if pkt.Frames != 3 {
		t.Errorf("Frames = %d, want 3 (trailing partial frame dropped)", pkt.Frames)
	}

	if _, err := r.ReadPacket(context.Background(), 8); err != io.EOF {
		t.Errorf("second ReadPacket = %v, want io.EOF", err)
	}
}

func TestRawReaderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRawReader(bytes.NewReader(make([]byte, 64)), s16leFormat(48000, 2))
	if _, err := r.ReadPacket(ctx, 4); err == nil {
		t.Error("ReadPacket with a cancelled context should fail")
	}
}

func TestDecoderCopiesPacketAndCountsFrames(t *testing.T) {
	format := s16leFormat(44100, 1)
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	d := NewDecoder(context.Background(), NewRawReader(bytes.NewReader(pcm), format), format)

	audio := make([]byte, len(pcm))
	n, err := d.DecodeSamples(4, audio)
	if err != nil {
		t.Fatalf("DecodeSamples: %v", err)
	}
	if n != 4 {
		t.Errorf("frames = %d, want 4", n)
	}
	if !bytes.Equal(audio, pcm) {
		t.Errorf("audio = %v, want %v", audio, pcm)
	}
}

// changingProvider returns one packet in a new format, exercising the
// mid-stream format-change notification.
type changingProvider struct {
	format Format
	sent   bool
}

func (p *changingProvider) ReadPacket(ctx context.Context, frames int) (*Packet, error) {
	if p.sent {
		return nil, io.EOF
	}
	p.sent = true
	return &Packet{
		Audio:  make([]byte, 2*p.format.Channels*p.format.BytesPerSample),
		Frames: 2,
		Format: p.format,
	}, nil
}

func TestDecoderNotifiesFormatChange(t *testing.T) {
	initial := s16leFormat(48000, 2)
	changed := s16leFormat(44100, 6)
	d := NewDecoder(context.Background(), &changingProvider{format: changed}, initial)

	audio := make([]byte, 64)
	if _, err := d.DecodeSamples(2, audio); err != nil {
		t.Fatalf("DecodeSamples: %v", err)
	}

	select {
	case got := <-d.FormatChanges():
		if got != changed {
			t.Errorf("FormatChanges delivered %+v, want %+v", got, changed)
		}
	default:
		t.Fatal("no format-change notification posted")
	}

	if rate, channels, bits := d.GetFormat(); rate != 44100 || channels != 6 || bits != 16 {
		t.Errorf("GetFormat() = (%d, %d, %d), want (44100, 6, 16)", rate, channels, bits)
	}
}
