package frame

import (
	"encoding/binary"
	"fmt"
)

// Response is a decoded CCIEFB cyclic response frame (slave -> master
// unicast).
type Response struct {
	ProtocolVersion uint16
	EndCode         uint16 // 0 = success

	VendorCode           uint16
	ModelCode            uint32
	EquipmentVer         uint16
	SlaveLocalUnitInfo   uint16 // 0 or 1
	SlaveErrCode         uint16
	LocalManagementInfo  uint32

	SlaveID         uint32
	GroupNumber     uint8
	FrameSequenceNo uint16

	// RWr is 32 little-endian words per occupied station.
	RWr []uint16
	// RX is 64 bits per occupied station, little-endian bit-packed.
	RX [][8]byte
}

// Encode serializes resp into a freshly allocated buffer sized per
// ResponseFrameSize(len(resp.RX)).
func (resp *Response) Encode() ([]byte, error) {
	n := len(resp.RX)
	if n < 1 || n > 16 {
		return nil, fmt.Errorf("frame: invalid occupied station count %d", n)
	}
	if len(resp.RWr) != n*32 {
		return nil, fmt.Errorf("frame: RWr must have %d words, got %d", n*32, len(resp.RWr))
	}

	size := ResponseFrameSize(n)
	buf := make([]byte, size)
	off := 0

	binary.BigEndian.PutUint16(buf[off:], respReserved1)
	off += 2
	buf[off] = respReserved2
	off++
	buf[off] = respReserved3
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(size-9))
	off += 2
	buf[off] = respReserved4
	off++
	binary.LittleEndian.PutUint16(buf[off:], respCommand)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], respSubCmd)
	off += 2
	// off == ResponseHeaderSize (11)

	binary.LittleEndian.PutUint16(buf[off:], resp.ProtocolVersion)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], resp.EndCode)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], respCyclicInfoOffset)
	off += 2
	off += 14 // zeros
	// off == 11+20 == 31

	binary.LittleEndian.PutUint16(buf[off:], resp.VendorCode)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0) // reserved1
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], resp.ModelCode)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], resp.EquipmentVer)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0) // reserved2
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], resp.SlaveLocalUnitInfo)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], resp.SlaveErrCode)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], resp.LocalManagementInfo)
	off += 4
	// off == 31+20 == 51

	binary.LittleEndian.PutUint32(buf[off:], resp.SlaveID)
	off += 4
	buf[off] = resp.GroupNumber
	off++
	buf[off] = 0 // reserved2
	off++
	binary.LittleEndian.PutUint16(buf[off:], resp.FrameSequenceNo)
	off += 2
	// off == 51+8 == 59 == responseFixedSize

	for _, w := range resp.RWr {
		binary.LittleEndian.PutUint16(buf[off:], w)
		off += 2
	}
	for _, rx := range resp.RX {
		copy(buf[off:off+8], rx[:])
		off += 8
	}

	return buf, nil
}

// DecodeResponse parses a raw UDP payload into a Response. Like
// DecodeRequest, it assumes Validate has already run.
func DecodeResponse(buf []byte) (*Response, error) {
	if len(buf) < responseFixedSize {
		return nil, fmt.Errorf("frame: response too short: %d bytes", len(buf))
	}

	resp := &Response{}
	off := ResponseHeaderSize

	resp.ProtocolVersion = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	resp.EndCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	off += 2  // cyclic_info_offset_addr
	off += 14 // zeros
	// off == 31

	resp.VendorCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	off += 2 // reserved1
	resp.ModelCode = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	resp.EquipmentVer = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	off += 2 // reserved2
	resp.SlaveLocalUnitInfo = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	resp.SlaveErrCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	resp.LocalManagementInfo = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	// off == 51

	resp.SlaveID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	resp.GroupNumber = buf[off]
	off++
	off++ // reserved2
	resp.FrameSequenceNo = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	// off == 59

	n := NumberOfOccupiedFromResponseSize(len(buf))
	if n == 0 {
		return nil, fmt.Errorf("frame: response size %d does not match any valid occupied count", len(buf))
	}

	resp.RWr = make([]uint16, n*32)
	for i := range resp.RWr {
		resp.RWr[i] = binary.LittleEndian.Uint16(buf[off:])
		off += 2
	}
	resp.RX = make([][8]byte, n)
	for i := range resp.RX {
		copy(resp.RX[i][:], buf[off:off+8])
		off += 8
	}

	return resp, nil
}
