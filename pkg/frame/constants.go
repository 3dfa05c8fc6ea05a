// Package frame implements the CCIEFB cyclic request/response wire codec
// and the SLMP Node-Search/Set-IP wire codec (spec §4.1). All integer
// fields are little-endian except the fixed magic words called out below,
// which are big-endian; the codec converts explicitly and never assumes
// host endianness (encoding/binary only, no unsafe casts).
package frame

const (
	// CCIEFBPort is the UDP port cyclic request/response frames travel on.
	CCIEFBPort uint16 = 61450
	// SLMPPort is the UDP port Node-Search/Set-IP frames travel on.
	SLMPPort uint16 = 61451
)

// Fixed magic / reserved values for the CCIEFB request header.
const (
	reqReserved1 uint16 = 0x5000 // big-endian on the wire
	reqReserved2 uint8  = 0x00
	reqReserved3 uint8  = 0xFF
	reqReserved4 uint16 = 0x03FF
	reqReserved5 uint8  = 0x00
	reqReserved6 uint16 = 0x0000
	reqCommand   uint16 = 0x0E70
	reqSubCmd    uint16 = 0x0000

	reqCyclicInfoOffset uint16 = 36
)

// Fixed magic / reserved values for the CCIEFB response header.
const (
	respReserved1 uint16 = 0xD000 // big-endian on the wire
	respReserved2 uint8  = 0x00
	respReserved3 uint8  = 0xFF
	respReserved4 uint8  = 0x00
	respCommand   uint16 = 0x0E70
	respSubCmd    uint16 = 0x0000

	respCyclicInfoOffset uint16 = 40
)

// Header sizes, in bytes.
const (
	RequestHeaderSize       = 15
	CyclicHeaderSize        = 22
	MasterNotificationSize  = 12
	CyclicDataHeaderSize    = 18
	requestFixedSize        = RequestHeaderSize + CyclicHeaderSize + MasterNotificationSize + CyclicDataHeaderSize // 67
	perStationRequestSize   = 4 + 64 + 8                                                                           // slave id + RWw + RY = 76

	ResponseHeaderSize      = 11
	CyclicRespHeaderSize    = 20
	SlaveNotificationSize   = 20
	CyclicRespDataHeaderSize = 8
	responseFixedSize      = ResponseHeaderSize + CyclicRespHeaderSize + SlaveNotificationSize + CyclicRespDataHeaderSize // 59
	perStationResponseSize = 64 + 8                                                                                       // RWr + RX = 72
)

// MultiStationMarker fills slave-ID list positions for stations 2..k of a
// multi-station device. It is identical in value to an invalid IP; the
// codec disambiguates by position in the list, never by value alone.
const MultiStationMarker uint32 = 0xFFFFFFFF

// RequestFrameSize returns the total UDP payload size for n occupied
// stations (1..16), or 0 for any other n.
func RequestFrameSize(n int) int {
	if n < 1 || n > 16 {
		return 0
	}
	return n*perStationRequestSize + requestFixedSize
}

// ResponseFrameSize returns the total UDP payload size for n occupied
// stations (1..16), or 0 for any other n.
func ResponseFrameSize(n int) int {
	if n < 1 || n > 16 {
		return 0
	}
	return n*perStationResponseSize + responseFixedSize
}

// NumberOfOccupiedFromResponseSize inverts ResponseFrameSize: given a UDP
// payload length, returns the implied station count in 1..16, or 0 if the
// size does not correspond to any valid count.
func NumberOfOccupiedFromResponseSize(size int) int {
	for n := 1; n <= 16; n++ {
		if ResponseFrameSize(n) == size {
			return n
		}
	}
	return 0
}

// NumberOfOccupiedFromRequestSize inverts RequestFrameSize.
func NumberOfOccupiedFromRequestSize(size int) int {
	for n := 1; n <= 16; n++ {
		if RequestFrameSize(n) == size {
			return n
		}
	}
	return 0
}
