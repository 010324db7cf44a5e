package engine

import (
	"sync/atomic"

	"github.com/hdaudio/avengine/pkg/ringbuffer"
)

// maxSlots is the fixed ring-of-rings size.
const maxSlots = 8

// slotBufferBytes is the capacity requested for each slot's byte ring
// buffer: 3*5*7*8*2*1000 bytes (~1.68MB), which ringbuffer.New rounds up to
// 2MiB. It is sized to comfortably hold a buffer-time's worth of the richest
// supported format (8 channels, 16-bit) across the supported rates.
const slotBufferBytes = 3 * 5 * 7 * 8 * 2 * 1000

// Slot is one entry of the pipeline ring. The producer mutates only the
// write slot; the worker mutates only the read slot.
type Slot struct {
	FlushBuffers   bool
	UseAC3         bool
	PacketSize     int
	InRate         int
	InChannels     int
	HWRate         int
	HWChannels     int
	PTS            int64
	StartThreshold int
	Buffer         *ringbuffer.RingBuffer
}

func newSlot() *Slot {
	return &Slot{PTS: NoPTS, Buffer: ringbuffer.New(slotBufferBytes)}
}

func (s *Slot) reset(inRate, inChannels, hwRate, hwChannels int, useAC3 bool) {
	s.Buffer.Reset()
	s.FlushBuffers = true
	s.UseAC3 = useAC3
	s.PacketSize = 0
	s.InRate = inRate
	s.InChannels = inChannels
	s.HWRate = hwRate
	s.HWChannels = hwChannels
	s.PTS = NoPTS
	s.StartThreshold = 0
}

// sameFormat reports whether two slots would drive the backend identically.
func (s *Slot) sameFormat(other *Slot) bool {
	return s.UseAC3 == other.UseAC3 && s.HWRate == other.HWRate && s.HWChannels == other.HWChannels
}

// Pipeline is the fixed 8-slot ring. filled is the publication fence between
// the single producer and single worker: the producer only ever increments
// it after fully initializing the new write slot; the worker only ever
// decrements it after it has finished with the old read slot.
type Pipeline struct {
	slots  [maxSlots]*Slot
	write  int
	read   int
	filled atomic.Int32
}

// NewPipeline allocates all 8 slots up front; they live for the process.
func NewPipeline() *Pipeline {
	p := &Pipeline{}
	for i := range p.slots {
		p.slots[i] = newSlot()
	}
	return p
}

// Filled returns the number of slots between read and write, 0..8.
func (p *Pipeline) Filled() int { return int(p.filled.Load()) }

// WriteSlot returns the producer's current slot.
func (p *Pipeline) WriteSlot() *Slot { return p.slots[p.write] }

// ReadSlot returns the worker's current slot.
func (p *Pipeline) ReadSlot() *Slot { return p.slots[p.read] }

// AddSlot introduces a new write slot with the given format. Producer side
// only.
func (p *Pipeline) AddSlot(inRate, inChannels, hwRate, hwChannels int, useAC3 bool) error {
	if p.Filled() >= maxSlots {
		return ErrRingFull
	}
	p.write = (p.write + 1) % maxSlots
	p.slots[p.write].reset(inRate, inChannels, hwRate, hwChannels, useAC3)
	p.filled.Add(1)
	return nil
}

// Advance moves the worker's read cursor to the next slot. Caller must have
// already observed Filled() > 0. Worker side only.
func (p *Pipeline) Advance() *Slot {
	p.read = (p.read + 1) % maxSlots
	p.filled.Add(-1)
	return p.slots[p.read]
}

// FlushDistance scans forward from the read cursor through the filled range
// and returns how many slots ahead the newest flush marker lies, or 0 when
// no queued slot carries one. Worker side only.
func (p *Pipeline) FlushDistance() int {
	distance := 0
	for i := 1; i <= p.Filled(); i++ {
		if p.slots[(p.read+i)%maxSlots].FlushBuffers {
			distance = i
		}
	}
	return distance
}
