package frame

import (
	"encoding/binary"
	"fmt"
)

// Request is a decoded CCIEFB cyclic request frame (master -> broadcast).
type Request struct {
	ProtocolVersion   uint16
	MasterLocalUnitInfo uint16
	ClockInfo         uint64 // Unix time, milliseconds, little-endian on the wire
	MasterID          uint32
	GroupNumber       uint8
	FrameSequenceNo   uint16
	TimeoutValue      uint16
	ParallelOffTimeoutCount uint16
	ParameterNo       uint16
	TotalOccupied     uint8
	CyclicTransmissionState uint16

	// SlaveIDs has exactly TotalOccupied entries: for a device occupying k
	// stations starting at station s, position s-1 holds the device's IP,
	// positions s..s+k-2 hold MultiStationMarker.
	SlaveIDs []uint32
	// RWw is 32 little-endian words per occupied station.
	RWw []uint16
	// RY is 64 bits per occupied station, little-endian bit-packed.
	RY [][8]byte
}

// Encode serializes r into a freshly allocated buffer sized per
// RequestFrameSize(len(r.SlaveIDs)).
func (r *Request) Encode() ([]byte, error) {
	n := len(r.SlaveIDs)
	if n < 1 || n > 16 {
		return nil, fmt.Errorf("frame: invalid occupied station count %d", n)
	}
	if len(r.RWw) != n*32 {
		return nil, fmt.Errorf("frame: RWw must have %d words, got %d", n*32, len(r.RWw))
	}
	if len(r.RY) != n {
		return nil, fmt.Errorf("frame: RY must have %d station entries, got %d", n, len(r.RY))
	}

	size := RequestFrameSize(n)
	buf := make([]byte, size)
	payloadLen := size

	off := 0
	binary.BigEndian.PutUint16(buf[off:], reqReserved1)
	off += 2
	buf[off] = reqReserved2
	off++
	buf[off] = reqReserved3
	off++
	binary.LittleEndian.PutUint16(buf[off:], reqReserved4)
	off += 2
	buf[off] = reqReserved5
	off++
	binary.LittleEndian.PutUint16(buf[off:], uint16(payloadLen-9))
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], reqReserved6)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], reqCommand)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], reqSubCmd)
	off += 2
	// off == RequestHeaderSize (15)

	binary.LittleEndian.PutUint16(buf[off:], r.ProtocolVersion)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0) // reserved1
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], reqCyclicInfoOffset)
	off += 2
	off += 16 // zeros
	// off == 15+22 == 37

	binary.LittleEndian.PutUint16(buf[off:], r.MasterLocalUnitInfo)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], 0) // reserved
	off += 2
	binary.LittleEndian.PutUint64(buf[off:], r.ClockInfo)
	off += 8
	// off == 37+12 == 49

	binary.LittleEndian.PutUint32(buf[off:], r.MasterID)
	off += 4
	buf[off] = r.GroupNumber
	off++
	buf[off] = 0 // reserved3
	off++
	binary.LittleEndian.PutUint16(buf[off:], r.FrameSequenceNo)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.TimeoutValue)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.ParallelOffTimeoutCount)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.ParameterNo)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], uint16(r.TotalOccupied))
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.CyclicTransmissionState)
	off += 2
	// off == 49+18 == 67 == requestFixedSize

	for _, id := range r.SlaveIDs {
		binary.LittleEndian.PutUint32(buf[off:], id)
		off += 4
	}
	for _, w := range r.RWw {
		binary.LittleEndian.PutUint16(buf[off:], w)
		off += 2
	}
	for _, ry := range r.RY {
		copy(buf[off:off+8], ry[:])
		off += 8
	}

	return buf, nil
}

// DecodeRequest parses a raw UDP payload into a Request. It assumes the
// payload has already passed Validate; it does not re-check reserved
// fields or sizes beyond what is needed to avoid an out-of-bounds read.
func DecodeRequest(buf []byte) (*Request, error) {
	if len(buf) < requestFixedSize {
		return nil, fmt.Errorf("frame: request too short: %d bytes", len(buf))
	}

	r := &Request{}
	off := RequestHeaderSize

	r.ProtocolVersion = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	off += 2 // reserved1
	off += 2 // cyclic_info_offset_addr
	off += 16
	// off == 37

	r.MasterLocalUnitInfo = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	off += 2 // reserved
	r.ClockInfo = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	// off == 49

	r.MasterID = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	r.GroupNumber = buf[off]
	off++
	off++ // reserved3
	r.FrameSequenceNo = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.TimeoutValue = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.ParallelOffTimeoutCount = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.ParameterNo = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.TotalOccupied = uint8(binary.LittleEndian.Uint16(buf[off:]))
	off += 2
	r.CyclicTransmissionState = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	// off == 67

	n := int(r.TotalOccupied)
	want := RequestFrameSize(n)
	if want == 0 || len(buf) != want {
		return nil, fmt.Errorf("frame: request size %d does not match occupied count %d", len(buf), n)
	}

	r.SlaveIDs = make([]uint32, n)
	for i := range r.SlaveIDs {
		r.SlaveIDs[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	r.RWw = make([]uint16, n*32)
	for i := range r.RWw {
		r.RWw[i] = binary.LittleEndian.Uint16(buf[off:])
		off += 2
	}
	r.RY = make([][8]byte, n)
	for i := range r.RY {
		copy(r.RY[i][:], buf[off:off+8])
		off += 8
	}

	return r, nil
}
