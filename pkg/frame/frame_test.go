package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSizeFormulas(t *testing.T) {
	for n := 1; n <= 16; n++ {
		assert.Equal(t, n*76+67, RequestFrameSize(n))
		assert.Equal(t, n*72+59, ResponseFrameSize(n))
		assert.Equal(t, n, NumberOfOccupiedFromResponseSize(n*72+59))
		assert.Equal(t, n, NumberOfOccupiedFromRequestSize(n*76+67))
	}
	assert.Equal(t, 0, RequestFrameSize(0))
	assert.Equal(t, 0, RequestFrameSize(17))
	assert.Equal(t, 0, NumberOfOccupiedFromResponseSize(12345))
}

func TestRequestEncodeDecodeRoundTrip(t *testing.T) {
	req := &Request{
		ProtocolVersion:         2,
		MasterLocalUnitInfo:     1,
		ClockInfo:               0xEFCDAB9078563412,
		MasterID:                0x01020304,
		GroupNumber:             1,
		FrameSequenceNo:         0x2211,
		TimeoutValue:            500,
		ParallelOffTimeoutCount: 3,
		ParameterNo:             501,
		TotalOccupied:           3,
		CyclicTransmissionState: 0,
		SlaveIDs:                []uint32{0x01020306, MultiStationMarker, MultiStationMarker},
		RWw:                     make([]uint16, 3*32),
		RY:                      make([][8]byte, 3),
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	assert.Equal(t, RequestFrameSize(3), len(buf))
	assert.Equal(t, 295, len(buf))
	assert.Equal(t, RejectNone, ValidateRequest(buf))

	got, err := DecodeRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, req.MasterID, got.MasterID)
	assert.Equal(t, req.GroupNumber, got.GroupNumber)
	assert.Equal(t, req.FrameSequenceNo, got.FrameSequenceNo)
	assert.Equal(t, req.ParameterNo, got.ParameterNo)
	assert.Equal(t, req.ClockInfo, got.ClockInfo)
	assert.Equal(t, req.SlaveIDs, got.SlaveIDs)
}

func TestResponseEncodeDecodeRoundTrip(t *testing.T) {
	resp := &Response{
		ProtocolVersion: 2,
		EndCode:         0,
		VendorCode:      0x3456,
		ModelCode:       0x789ABCDE,
		EquipmentVer:    0xF012,
		SlaveID:         0x01020306,
		GroupNumber:     1,
		FrameSequenceNo: 0x2211,
		RWr:             make([]uint16, 2*32),
		RX:              make([][8]byte, 2),
	}
	buf, err := resp.Encode()
	require.NoError(t, err)
	assert.Equal(t, ResponseFrameSize(2), len(buf))
	assert.Equal(t, RejectNone, ValidateResponse(buf))

	got, err := DecodeResponse(buf)
	require.NoError(t, err)
	assert.Equal(t, resp.SlaveID, got.SlaveID)
	assert.Equal(t, resp.VendorCode, got.VendorCode)
	assert.Equal(t, resp.ModelCode, got.ModelCode)
	assert.Equal(t, resp.EquipmentVer, got.EquipmentVer)
	assert.Equal(t, resp.FrameSequenceNo, got.FrameSequenceNo)
}

func TestValidateRequestRejectsTooShort(t *testing.T) {
	assert.Equal(t, RejectTooShort, ValidateRequest(nil))
	assert.Equal(t, RejectTooShort, ValidateRequest(make([]byte, 5)))
}

func TestValidateRequestRejectsBadReservedField(t *testing.T) {
	req := &Request{
		ProtocolVersion: 2, MasterID: 0x01020304, GroupNumber: 1,
		TotalOccupied: 1, TimeoutValue: 500, ParallelOffTimeoutCount: 3,
		SlaveIDs: []uint32{0x01020306}, RWw: make([]uint16, 32), RY: make([][8]byte, 1),
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	buf[2] = 0x01 // corrupt reserved2
	assert.Equal(t, RejectReservedField, ValidateRequest(buf))
}

func TestValidateRequestRejectsBadGroupNumber(t *testing.T) {
	req := &Request{
		ProtocolVersion: 2, MasterID: 0x01020304, GroupNumber: 65,
		TotalOccupied: 1, TimeoutValue: 500, ParallelOffTimeoutCount: 3,
		SlaveIDs: []uint32{0x01020306}, RWw: make([]uint16, 32), RY: make([][8]byte, 1),
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	assert.Equal(t, RejectGroupNumber, ValidateRequest(buf))
}

func TestValidateRequestRejectsInvalidMasterID(t *testing.T) {
	req := &Request{
		ProtocolVersion: 2, MasterID: 0, GroupNumber: 1,
		TotalOccupied: 1, TimeoutValue: 500, ParallelOffTimeoutCount: 3,
		SlaveIDs: []uint32{0x01020306}, RWw: make([]uint16, 32), RY: make([][8]byte, 1),
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	assert.Equal(t, RejectPeerID, ValidateRequest(buf))
}

func TestAnalyzeSlaveIDList(t *testing.T) {
	ids := []uint32{0x01020306, MultiStationMarker, MultiStationMarker}
	a, err := AnalyzeSlaveIDList(ids, 0x01020306)
	require.NoError(t, err)
	assert.True(t, a.Found)
	assert.Equal(t, 1, a.MyStationNo)
	assert.Equal(t, 3, a.OccupationCount)

	_, err = AnalyzeSlaveIDList([]uint32{0x01020306, 0x01020306}, 0x01020306)
	assert.ErrorIs(t, err, ErrDuplicateSlaveID)

	a, err = AnalyzeSlaveIDList(ids, 0x09090909)
	require.NoError(t, err)
	assert.False(t, a.Found)
}

func TestBuildSlaveIDList(t *testing.T) {
	ids := BuildSlaveIDList(3, []SlaveIDListEntry{
		{IP: 0x01020306, StartStation: 1, NumStations: 3},
	})
	assert.Equal(t, []uint32{0x01020306, MultiStationMarker, MultiStationMarker}, ids)
}

func TestNodeSearchRequestEncodeSize(t *testing.T) {
	req := &NodeSearchRequest{
		Serial:    1,
		MasterMAC: [6]byte{0x00, 0x1B, 0x19, 0x11, 0x22, 0x33},
		MasterIP:  0x01020304,
	}
	buf := req.Encode()
	assert.Equal(t, 30, len(buf))
	assert.Equal(t, RejectNone, ValidateSLMPRequest(buf, NodeSearchCommand))

	got := DecodeNodeSearchRequest(buf)
	assert.Equal(t, req.Serial, got.Serial)
	assert.Equal(t, req.MasterMAC, got.MasterMAC)
	assert.Equal(t, req.MasterIP, got.MasterIP)
}

func TestNodeSearchResponseEncodeSize(t *testing.T) {
	entry := &NodeSearchResponseEntry{
		Serial:       1,
		EndCode:      0,
		MAC:          [6]byte{0x00, 0x1B, 0x19, 0x11, 0x22, 0x33},
		IP:           0x01020306,
		Netmask:      0xFFFF0000,
		VendorCode:   0x3456,
		ModelCode:    0x789ABCDE,
		EquipmentVer: 0xF012,
	}
	buf := entry.Encode()
	assert.Equal(t, 66, len(buf))
	assert.Equal(t, RejectNone, ValidateSLMPResponse(buf, NodeSearchCommand))

	got := DecodeNodeSearchResponse(buf)
	assert.Equal(t, entry.MAC, got.MAC)
	assert.Equal(t, entry.IP, got.IP)
	assert.Equal(t, entry.Netmask, got.Netmask)
	assert.Equal(t, entry.VendorCode, got.VendorCode)
	assert.Equal(t, entry.ModelCode, got.ModelCode)
	assert.Equal(t, entry.EquipmentVer, got.EquipmentVer)
}

func TestSetIPRoundTrip(t *testing.T) {
	req := &SetIPRequest{
		Serial:     7,
		TargetMAC:  [6]byte{0x00, 0x1B, 0x19, 0x11, 0x22, 0x33},
		NewIP:      0x01020306,
		NewNetmask: 0xFFFF0000,
	}
	buf := req.Encode()
	assert.Equal(t, RejectNone, ValidateSLMPRequest(buf, SetIPCommand))
	got := DecodeSetIPRequest(buf)
	assert.Equal(t, req.TargetMAC, got.TargetMAC)
	assert.Equal(t, req.NewIP, got.NewIP)

	resp := &SetIPResponse{Serial: 7, EndCode: 0, MasterMACEcho: req.TargetMAC}
	rbuf := resp.Encode()
	assert.Equal(t, RejectNone, ValidateSLMPResponse(rbuf, SetIPCommand))
	gotResp := DecodeSetIPResponse(rbuf)
	assert.Equal(t, resp.EndCode, gotResp.EndCode)
	assert.Equal(t, resp.MasterMACEcho, gotResp.MasterMACEcho)
}
