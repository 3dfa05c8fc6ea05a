package frame

import "encoding/binary"

// SLMP command/subcommand pairs used by the discovery/addressing
// sub-protocol (spec §4.5).
const (
	NodeSearchCommand    uint16 = 0x0E30
	SetIPCommand         uint16 = 0x0E31
	SLMPSubCommandZero   uint16 = 0x0000
)

const (
	slmpReqPreamble  uint16 = 0x5400 // big-endian on the wire
	slmpRespPreamble uint16 = 0xD400 // big-endian on the wire

	slmpReserved2 uint8  = 0x00
	slmpReserved3 uint8  = 0xFF
	slmpReserved4 uint16 = 0x03FF
	slmpReserved5 uint8  = 0x00
	slmpReserved6 uint16 = 0x0000
	slmpReserved7 uint16 = 0x0000

	slmpPreambleSize = 11
	slmpHeaderSize   = slmpPreambleSize + 2 /*length*/ + 2 /*command*/ + 2 /*subcommand*/ // 17

	ipSizeByte = 4
)

// reverseMAC returns a copy of mac with byte order reversed, the wire
// convention SLMP uses for hardware addresses.
func reverseMAC(mac [6]byte) [6]byte {
	var out [6]byte
	for i := 0; i < 6; i++ {
		out[i] = mac[5-i]
	}
	return out
}

func putPreamble(buf []byte, isRequest bool) {
	if isRequest {
		binary.BigEndian.PutUint16(buf[0:], slmpReqPreamble)
	} else {
		binary.BigEndian.PutUint16(buf[0:], slmpRespPreamble)
	}
	buf[2] = slmpReserved2
	buf[3] = slmpReserved3
	binary.LittleEndian.PutUint16(buf[4:], slmpReserved4)
	buf[6] = slmpReserved5
	binary.LittleEndian.PutUint16(buf[7:], slmpReserved6)
	binary.LittleEndian.PutUint16(buf[9:], slmpReserved7)
}

// checkPreamble validates the 11-byte SLMP preamble, rule 2 of §4.1
// applied to SLMP: all reserved fields must match the fixed constants.
func checkPreamble(buf []byte, isRequest bool) bool {
	if len(buf) < slmpPreambleSize {
		return false
	}
	want := slmpRespPreamble
	if isRequest {
		want = slmpReqPreamble
	}
	return binary.BigEndian.Uint16(buf[0:]) == want &&
		buf[2] == slmpReserved2 &&
		buf[3] == slmpReserved3 &&
		binary.LittleEndian.Uint16(buf[4:]) == slmpReserved4 &&
		buf[6] == slmpReserved5 &&
		binary.LittleEndian.Uint16(buf[7:]) == slmpReserved6 &&
		binary.LittleEndian.Uint16(buf[9:]) == slmpReserved7
}

// ---- Node Search ----

// NodeSearchRequest is the frame the master broadcasts to start discovery.
type NodeSearchRequest struct {
	Serial    uint16
	MasterMAC [6]byte
	MasterIP  uint32
}

// Encode serializes a NodeSearchRequest into a 30-byte frame.
func (r *NodeSearchRequest) Encode() []byte {
	buf := make([]byte, slmpHeaderSize+2+6+1+4)
	putPreamble(buf, true)
	binary.LittleEndian.PutUint16(buf[11:], uint16(len(buf)-13))
	binary.LittleEndian.PutUint16(buf[13:], NodeSearchCommand)
	binary.LittleEndian.PutUint16(buf[15:], SLMPSubCommandZero)
	off := slmpHeaderSize
	binary.LittleEndian.PutUint16(buf[off:], r.Serial)
	off += 2
	mac := reverseMAC(r.MasterMAC)
	copy(buf[off:off+6], mac[:])
	off += 6
	buf[off] = ipSizeByte
	off++
	binary.LittleEndian.PutUint32(buf[off:], r.MasterIP)
	return buf
}

// DecodeNodeSearchRequest parses a raw Node Search request frame. Callers
// must run ValidateSLMPRequest(buf, NodeSearchCommand) first.
func DecodeNodeSearchRequest(buf []byte) NodeSearchRequest {
	off := slmpHeaderSize
	r := NodeSearchRequest{}
	r.Serial = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	var mac [6]byte
	copy(mac[:], buf[off:off+6])
	r.MasterMAC = reverseMAC(mac)
	off += 6
	off++ // ip size byte
	r.MasterIP = binary.LittleEndian.Uint32(buf[off:])
	return r
}

// NodeSearchResponseEntry is one device's answer to a Node Search.
type NodeSearchResponseEntry struct {
	Serial       uint16
	EndCode      uint16
	MAC          [6]byte
	IP           uint32
	Netmask      uint32
	VendorCode   uint16
	ModelCode    uint32
	EquipmentVer uint16
}

const nodeSearchResponseReservedTail = 21

// Encode serializes a single Node-Search response entry into a 66-byte
// frame.
func (e *NodeSearchResponseEntry) Encode() []byte {
	payload := 2 + 2 + 6 + 1 + 4 + 1 + 4 + 2 + 4 + 2 + nodeSearchResponseReservedTail
	buf := make([]byte, slmpHeaderSize+payload)
	putPreamble(buf, false)
	binary.LittleEndian.PutUint16(buf[11:], uint16(len(buf)-13))
	binary.LittleEndian.PutUint16(buf[13:], NodeSearchCommand)
	binary.LittleEndian.PutUint16(buf[15:], SLMPSubCommandZero)
	off := slmpHeaderSize
	binary.LittleEndian.PutUint16(buf[off:], e.Serial)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], e.EndCode)
	off += 2
	mac := reverseMAC(e.MAC)
	copy(buf[off:off+6], mac[:])
	off += 6
	buf[off] = ipSizeByte
	off++
	binary.LittleEndian.PutUint32(buf[off:], e.IP)
	off += 4
	buf[off] = ipSizeByte
	off++
	binary.LittleEndian.PutUint32(buf[off:], e.Netmask)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], e.VendorCode)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], e.ModelCode)
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], e.EquipmentVer)
	return buf
}

// DecodeNodeSearchResponse parses a single Node-Search response frame.
// Callers must run ValidateSLMPResponse(buf, NodeSearchCommand) first.
func DecodeNodeSearchResponse(buf []byte) NodeSearchResponseEntry {
	off := slmpHeaderSize
	e := NodeSearchResponseEntry{}
	e.Serial = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	e.EndCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	var mac [6]byte
	copy(mac[:], buf[off:off+6])
	e.MAC = reverseMAC(mac)
	off += 6
	off++ // ip size byte
	e.IP = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	off++ // netmask size byte
	e.Netmask = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.VendorCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	e.ModelCode = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.EquipmentVer = binary.LittleEndian.Uint16(buf[off:])
	return e
}

// ---- Set IP ----

// SetIPRequest commands a single device (identified by MAC) to take on a
// new IP/netmask.
type SetIPRequest struct {
	Serial     uint16
	MasterMAC  [6]byte // echoed back by the slave's response, per spec §4.5
	TargetMAC  [6]byte
	NewIP      uint32
	NewNetmask uint32
}

func (r *SetIPRequest) Encode() []byte {
	payload := 2 + 6 + 6 + 1 + 4 + 1 + 4
	buf := make([]byte, slmpHeaderSize+payload)
	putPreamble(buf, true)
	binary.LittleEndian.PutUint16(buf[11:], uint16(len(buf)-13))
	binary.LittleEndian.PutUint16(buf[13:], SetIPCommand)
	binary.LittleEndian.PutUint16(buf[15:], SLMPSubCommandZero)
	off := slmpHeaderSize
	binary.LittleEndian.PutUint16(buf[off:], r.Serial)
	off += 2
	masterMAC := reverseMAC(r.MasterMAC)
	copy(buf[off:off+6], masterMAC[:])
	off += 6
	targetMAC := reverseMAC(r.TargetMAC)
	copy(buf[off:off+6], targetMAC[:])
	off += 6
	buf[off] = ipSizeByte
	off++
	binary.LittleEndian.PutUint32(buf[off:], r.NewIP)
	off += 4
	buf[off] = ipSizeByte
	off++
	binary.LittleEndian.PutUint32(buf[off:], r.NewNetmask)
	return buf
}

func DecodeSetIPRequest(buf []byte) SetIPRequest {
	off := slmpHeaderSize
	r := SetIPRequest{}
	r.Serial = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	var masterMAC [6]byte
	copy(masterMAC[:], buf[off:off+6])
	r.MasterMAC = reverseMAC(masterMAC)
	off += 6
	var targetMAC [6]byte
	copy(targetMAC[:], buf[off:off+6])
	r.TargetMAC = reverseMAC(targetMAC)
	off += 6
	off++
	r.NewIP = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	off++
	r.NewNetmask = binary.LittleEndian.Uint32(buf[off:])
	return r
}

// SetIPResponse echoes the requesting master's MAC and reports success or
// a device-side error code.
type SetIPResponse struct {
	Serial        uint16
	EndCode       uint16
	MasterMACEcho [6]byte
}

func (r *SetIPResponse) Encode() []byte {
	payload := 2 + 2 + 6
	buf := make([]byte, slmpHeaderSize+payload)
	putPreamble(buf, false)
	binary.LittleEndian.PutUint16(buf[11:], uint16(len(buf)-13))
	binary.LittleEndian.PutUint16(buf[13:], SetIPCommand)
	binary.LittleEndian.PutUint16(buf[15:], SLMPSubCommandZero)
	off := slmpHeaderSize
	binary.LittleEndian.PutUint16(buf[off:], r.Serial)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.EndCode)
	off += 2
	mac := reverseMAC(r.MasterMACEcho)
	copy(buf[off:off+6], mac[:])
	return buf
}

func DecodeSetIPResponse(buf []byte) SetIPResponse {
	off := slmpHeaderSize
	r := SetIPResponse{}
	r.Serial = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	r.EndCode = binary.LittleEndian.Uint16(buf[off:])
	off += 2
	var mac [6]byte
	copy(mac[:], buf[off:off+6])
	r.MasterMACEcho = reverseMAC(mac)
	return r
}

// ---- validation ----

// ValidateSLMPRequest checks the preamble, length field and
// command/subcommand of a raw SLMP request frame against wantCommand.
func ValidateSLMPRequest(buf []byte, wantCommand uint16) RejectReason {
	if len(buf) < slmpHeaderSize {
		return RejectTooShort
	}
	if !checkPreamble(buf, true) {
		return RejectReservedField
	}
	length := binary.LittleEndian.Uint16(buf[11:])
	if int(length) != len(buf)-13 {
		return RejectLengthField
	}
	command := binary.LittleEndian.Uint16(buf[13:])
	subCommand := binary.LittleEndian.Uint16(buf[15:])
	if command != wantCommand || subCommand != SLMPSubCommandZero {
		return RejectCommand
	}
	return RejectNone
}

// ValidateSLMPResponse checks the preamble, length field and
// command/subcommand of a raw SLMP response frame against wantCommand.
// An end code != 0 is not itself a validation failure (§4.5 step 3): the
// caller inspects EndCode after decoding.
func ValidateSLMPResponse(buf []byte, wantCommand uint16) RejectReason {
	if len(buf) < slmpHeaderSize {
		return RejectTooShort
	}
	if !checkPreamble(buf, false) {
		return RejectReservedField
	}
	length := binary.LittleEndian.Uint16(buf[11:])
	if int(length) != len(buf)-13 {
		return RejectLengthField
	}
	command := binary.LittleEndian.Uint16(buf[13:])
	subCommand := binary.LittleEndian.Uint16(buf[15:])
	if command != wantCommand || subCommand != SLMPSubCommandZero {
		return RejectCommand
	}
	return RejectNone
}

// SerialOf extracts the serial number from any SLMP frame (request or
// response) that has already passed validation, used for pending-request
// correlation.
func SerialOf(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf[slmpHeaderSize:])
}
