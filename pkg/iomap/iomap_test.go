package iomap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRYBitRoundTrip(t *testing.T) {
	im := NewImage()
	assert.False(t, im.GetRYBit(70))
	im.SetRYBit(70, true)
	assert.True(t, im.GetRYBit(70))
	// bit 70 is station 2 (70/64=1), byte (70%64)/8=0, mask 1<<6
	assert.Equal(t, byte(1<<6), im.RY[1][0])
	im.SetRYBit(70, false)
	assert.False(t, im.GetRYBit(70))
}

func TestRWwValueRoundTrip(t *testing.T) {
	im := NewImage()
	im.SetRWwValue(40, 0xBEEF)
	assert.Equal(t, uint16(0xBEEF), im.GetRWwValue(40))
	// register 40 is area 1 (40/32=1), offset 8
	assert.Equal(t, uint16(0xBEEF), im.RWw[32+8])
}

func TestOutOfRangeIsSentinel(t *testing.T) {
	im := NewImage()
	assert.False(t, im.GetRYBit(16*64))
	assert.Equal(t, uint16(0), im.GetRWwValue(16*32))
	im.SetRYBit(16*64, true)  // no-op, must not panic or corrupt
	im.SetRWwValue(16*32, 1) // no-op
	assert.False(t, im.GetRYBit(16*64))
}

func TestDeviceRangeForMultiStation(t *testing.T) {
	dr := DeviceRangeFor(2, 3) // station 2, occupies 3 stations
	assert.Equal(t, uint32(64), dr.FirstBit)
	assert.Equal(t, uint32(32), dr.FirstRegister)

	im := NewImage()
	im.SetRYBit(dr.FirstBit, true)
	area := im.FirstDeviceRYArea(dr)
	assert.NotNil(t, area)
	assert.Equal(t, byte(1), area[0])
}

func TestFirstDeviceAreaOutOfBounds(t *testing.T) {
	im := NewImage()
	dr := DeviceRangeFor(20, 1)
	assert.Nil(t, im.FirstDeviceRXArea(dr))
	assert.Nil(t, im.FirstDeviceRWrArea(dr))
}
