package frame

import (
	"encoding/binary"
)

// RejectReason tags why a frame failed ingest validation (spec §4.1, §7).
// Every rejection is a dropped, silent, transient wire fault; the taxonomy
// exists for diagnostics/statistics only, never for control flow that
// surfaces to the application.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectTooShort
	RejectReservedField
	RejectLengthField
	RejectCommand
	RejectProtocolVersion
	RejectCyclicInfoOffset
	RejectGroupNumber
	RejectOccupiedCount
	RejectSizeMismatch
	RejectPeerID
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectTooShort:
		return "too short"
	case RejectReservedField:
		return "reserved field mismatch"
	case RejectLengthField:
		return "dl field mismatch"
	case RejectCommand:
		return "command/sub_command mismatch"
	case RejectProtocolVersion:
		return "protocol version out of range"
	case RejectCyclicInfoOffset:
		return "cyclic_info_offset_addr mismatch"
	case RejectGroupNumber:
		return "group_no out of range"
	case RejectOccupiedCount:
		return "occupied station count out of range"
	case RejectSizeMismatch:
		return "frame size does not match occupied station count"
	case RejectPeerID:
		return "master_id/slave_id invalid"
	default:
		return "unknown"
	}
}

// RejectError wraps a RejectReason as an error, for callers that want the
// error interface (logging) as well as the typed reason.
type RejectError struct {
	Reason RejectReason
}

func (e *RejectError) Error() string { return "frame: rejected: " + e.Reason.String() }

// isValidUnicastIP duplicates the root package's IsValidUnicastIP check
// locally: frame is a leaf codec package (mirrors the teacher's
// dependency-free pkg/sdo/io.go) and does not import the root module.
func isValidUnicastIP(ip uint32) bool {
	return ip >= 0x00000001 && ip <= 0xDFFFFFFE
}

const (
	reqCyclicDataHeaderOffset  = RequestHeaderSize + CyclicHeaderSize + MasterNotificationSize // 49
	respCyclicDataHeaderOffset = ResponseHeaderSize + CyclicRespHeaderSize + SlaveNotificationSize // 51
)

// ValidateRequest runs the structural checks of spec §4.1 against a raw
// CCIEFB request payload, including that master_id is a valid unicast
// address (the generic half of rule 6; matching it against an expected
// peer is context-dependent and left to the caller).
func ValidateRequest(buf []byte) RejectReason {
	if len(buf) < RequestHeaderSize {
		return RejectTooShort
	}
	if binary.BigEndian.Uint16(buf[0:]) != reqReserved1 ||
		buf[2] != reqReserved2 ||
		buf[3] != reqReserved3 ||
		binary.LittleEndian.Uint16(buf[4:]) != reqReserved4 ||
		buf[6] != reqReserved5 {
		return RejectReservedField
	}
	dl := binary.LittleEndian.Uint16(buf[7:])
	if int(dl) != len(buf)-9 {
		return RejectLengthField
	}
	command := binary.LittleEndian.Uint16(buf[11:])
	subCommand := binary.LittleEndian.Uint16(buf[13:])
	if command != reqCommand || subCommand != reqSubCmd {
		return RejectCommand
	}
	if len(buf) < requestFixedSize {
		return RejectTooShort
	}
	protoVer := binary.LittleEndian.Uint16(buf[15:])
	if protoVer != 1 && protoVer != 2 {
		return RejectProtocolVersion
	}
	cyclicOffset := binary.LittleEndian.Uint16(buf[19:])
	if cyclicOffset != reqCyclicInfoOffset {
		return RejectCyclicInfoOffset
	}

	base := reqCyclicDataHeaderOffset
	masterID := binary.LittleEndian.Uint32(buf[base:])
	if !isValidUnicastIP(masterID) {
		return RejectPeerID
	}
	groupNo := buf[base+4]
	if groupNo < 1 || groupNo > 64 {
		return RejectGroupNumber
	}
	n := int(binary.LittleEndian.Uint16(buf[base+14:]))
	if n < 1 || n > 16 {
		return RejectOccupiedCount
	}
	if RequestFrameSize(n) != len(buf) {
		return RejectSizeMismatch
	}
	return RejectNone
}

// ValidateResponse runs the structural checks of spec §4.1 against a raw
// CCIEFB response payload.
func ValidateResponse(buf []byte) RejectReason {
	if len(buf) < ResponseHeaderSize {
		return RejectTooShort
	}
	if binary.BigEndian.Uint16(buf[0:]) != respReserved1 ||
		buf[2] != respReserved2 ||
		buf[3] != respReserved3 ||
		buf[6] != respReserved4 {
		return RejectReservedField
	}
	dl := binary.LittleEndian.Uint16(buf[4:])
	if int(dl) != len(buf)-9 {
		return RejectLengthField
	}
	command := binary.LittleEndian.Uint16(buf[7:])
	subCommand := binary.LittleEndian.Uint16(buf[9:])
	if command != respCommand || subCommand != respSubCmd {
		return RejectCommand
	}
	if len(buf) < responseFixedSize {
		return RejectTooShort
	}
	protoVer := binary.LittleEndian.Uint16(buf[11:])
	if protoVer != 1 && protoVer != 2 {
		return RejectProtocolVersion
	}
	cyclicOffset := binary.LittleEndian.Uint16(buf[15:])
	if cyclicOffset != respCyclicInfoOffset {
		return RejectCyclicInfoOffset
	}

	base := respCyclicDataHeaderOffset
	slaveID := binary.LittleEndian.Uint32(buf[base:])
	if !isValidUnicastIP(slaveID) {
		return RejectPeerID
	}
	groupNo := buf[base+4]
	if groupNo < 1 || groupNo > 64 {
		return RejectGroupNumber
	}
	n := NumberOfOccupiedFromResponseSize(len(buf))
	if n == 0 {
		return RejectSizeMismatch
	}
	return RejectNone
}
