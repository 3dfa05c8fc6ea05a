// Package iomap implements the cyclic I/O image (spec §4.6): the
// fixed-size RX/RY/RWr/RWw memory areas a group exposes, indexed by
// device and by a group-global bit or register number.
package iomap

import "github.com/cciefb-go/cciefb"

// stationsPerImage is the fixed width of every group's memory area,
// independent of how many stations are actually configured: spec §3
// sizes memory_area to 16 occupied stations regardless of configuration,
// zero-filling the unused tail.
const stationsPerImage = 16

// Image is one group's cyclic I/O memory area: RX/RY 64 bits and
// RWr/RWw 32 words per station, for all 16 possible stations.
type Image struct {
	RX  [stationsPerImage][8]byte
	RY  [stationsPerImage][8]byte
	RWr [stationsPerImage * 32]uint16
	RWw [stationsPerImage * 32]uint16
}

// NewImage returns a zeroed Image.
func NewImage() *Image { return &Image{} }

func bitInStation(bit uint32) (station int, idx cciefb.AreaIndex) {
	idx = cciefb.BitToArea(bit)
	return int(idx.Area), idx
}

// GetRXBit returns bit b (0-based, group-global per spec §4.6) of the RX
// area. Out-of-range b returns false.
func (im *Image) GetRXBit(b uint32) bool {
	station, idx := bitInStation(b)
	if station < 0 || station >= stationsPerImage {
		return false
	}
	return im.RX[station][idx.Byte]&idx.Mask != 0
}

// GetRYBit returns bit b of the RY area. Out-of-range b returns false.
func (im *Image) GetRYBit(b uint32) bool {
	station, idx := bitInStation(b)
	if station < 0 || station >= stationsPerImage {
		return false
	}
	return im.RY[station][idx.Byte]&idx.Mask != 0
}

// SetRYBit sets or clears bit b of the RY area. Out-of-range b is a no-op.
func (im *Image) SetRYBit(b uint32, value bool) {
	station, idx := bitInStation(b)
	if station < 0 || station >= stationsPerImage {
		return
	}
	if value {
		im.RY[station][idx.Byte] |= idx.Mask
	} else {
		im.RY[station][idx.Byte] &^= idx.Mask
	}
}

// SetRXBit sets or clears bit b of the RX area; used by the slave side to
// publish its own RX image and by loopback tests to inject values.
func (im *Image) SetRXBit(b uint32, value bool) {
	station, idx := bitInStation(b)
	if station < 0 || station >= stationsPerImage {
		return
	}
	if value {
		im.RX[station][idx.Byte] |= idx.Mask
	} else {
		im.RX[station][idx.Byte] &^= idx.Mask
	}
}

func registerInRange(r uint32) (reg cciefb.RegisterIndex, ok bool) {
	reg = cciefb.RegisterToArea(r)
	return reg, reg.Area < stationsPerImage
}

// GetRWrValue returns register r (0-based, group-global) of the RWr area.
// Out-of-range r returns 0.
func (im *Image) GetRWrValue(r uint32) uint16 {
	reg, ok := registerInRange(r)
	if !ok {
		return 0
	}
	return im.RWr[reg.Area*32+reg.Offset]
}

// GetRWwValue returns register r of the RWw area. Out-of-range r returns 0.
func (im *Image) GetRWwValue(r uint32) uint16 {
	reg, ok := registerInRange(r)
	if !ok {
		return 0
	}
	return im.RWw[reg.Area*32+reg.Offset]
}

// SetRWwValue sets register r of the RWw area. Out-of-range r is a no-op.
func (im *Image) SetRWwValue(r uint32, value uint16) {
	reg, ok := registerInRange(r)
	if !ok {
		return
	}
	im.RWw[reg.Area*32+reg.Offset] = value
}

// SetRWrValue sets register r of the RWr area; used by the slave side.
func (im *Image) SetRWrValue(r uint32, value uint16) {
	reg, ok := registerInRange(r)
	if !ok {
		return
	}
	im.RWr[reg.Area*32+reg.Offset] = value
}

// DeviceRange is the group-global bit/register range a device occupies:
// a device occupying k stations starting at station s (1-based) sees
// bits (s-1)*64 .. (s-1+k)*64-1 and registers (s-1)*32 .. (s-1+k)*32-1.
type DeviceRange struct {
	FirstBit      uint32
	FirstRegister uint32
	NumStations   int
}

// DeviceRangeFor computes the DeviceRange for a device starting at
// 1-based station startStation and occupying numStations stations.
func DeviceRangeFor(startStation, numStations int) DeviceRange {
	return DeviceRange{
		FirstBit:      cciefb.StationBitOffset(startStation),
		FirstRegister: cciefb.StationRegisterOffset(startStation),
		NumStations:   numStations,
	}
}

// FirstDeviceRXArea returns a pointer to the start of a device's RX
// station-byte area ("first_device_rx_area" in spec §4.6), or nil if the
// device range is out of bounds.
func (im *Image) FirstDeviceRXArea(dr DeviceRange) *[8]byte {
	station := int(dr.FirstBit / 64)
	if station < 0 || station >= stationsPerImage {
		return nil
	}
	return &im.RX[station]
}

// FirstDeviceRYArea mirrors FirstDeviceRXArea for RY.
func (im *Image) FirstDeviceRYArea(dr DeviceRange) *[8]byte {
	station := int(dr.FirstBit / 64)
	if station < 0 || station >= stationsPerImage {
		return nil
	}
	return &im.RY[station]
}

// FirstDeviceRWrArea returns a pointer to the first RWr word of a
// device's station range, or nil if out of bounds.
func (im *Image) FirstDeviceRWrArea(dr DeviceRange) *uint16 {
	if int(dr.FirstRegister) >= len(im.RWr) {
		return nil
	}
	return &im.RWr[dr.FirstRegister]
}

// FirstDeviceRWwArea mirrors FirstDeviceRWrArea for RWw.
func (im *Image) FirstDeviceRWwArea(dr DeviceRange) *uint16 {
	if int(dr.FirstRegister) >= len(im.RWw) {
		return nil
	}
	return &im.RWw[dr.FirstRegister]
}
