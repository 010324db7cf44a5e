package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToTicksOneSecond(t *testing.T) {
	rate, channels := 48000, 2
	oneSecondBytes := rate * channels * bytesPerSample
	ticks := bytesToTicks(oneSecondBytes, rate, channels)
	assert.EqualValues(t, 90000, ticks)
}

func TestTicksToBytesRoundTrip(t *testing.T) {
	rate, channels := 44100, 6
	bytes := ticksToBytes(90000, rate, channels)
	want := int64(rate * channels * bytesPerSample)
	assert.Equal(t, want, bytes)
	assert.EqualValues(t, 90000, bytesToTicks(int(bytes), rate, channels))
}

func TestClockHelpersRejectInvalidFormat(t *testing.T) {
	assert.EqualValues(t, 0, bytesToTicks(1000, 0, 2))
	assert.EqualValues(t, 0, ticksToBytes(1000, 48000, 0))
}
