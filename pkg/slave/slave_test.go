package slave

import (
	"testing"

	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlaveConfig() config.SlaveConfig {
	return config.SlaveConfig{
		SlaveID:             0x01020306,
		NumOccupiedStations: 2,
		VendorCode:          0x3456,
		ModelCode:           0x789ABCDE,
		EquipmentVer:        0xF012,
	}
}

func requestFor(slaveID uint32, totalOccupied int) *frame.Request {
	return &frame.Request{
		MasterID:                0x01020304,
		GroupNumber:             1,
		FrameSequenceNo:         0x2211,
		ClockInfo:               0xEFCDAB9078563412,
		TimeoutValue:            500,
		ParallelOffTimeoutCount: 3,
		TotalOccupied:           uint8(totalOccupied),
		SlaveIDs:                frame.BuildSlaveIDList(totalOccupied, []frame.SlaveIDListEntry{{IP: slaveID, StartStation: 1, NumStations: 2}}),
		RWw:                     make([]uint16, totalOccupied*32),
		RY:                      make([][8]byte, totalOccupied),
	}
}

// TestSlaveBindOnFirstValidRequest mirrors the spec's scenario 2.
func TestSlaveBindOnFirstValidRequest(t *testing.T) {
	s := New(testSlaveConfig())
	s.Startup()
	assert.Equal(t, StateMasterNone, s.State)

	connected := false
	s.OnConnect = func() { connected = true }

	req := requestFor(0x01020306, 2)
	resp := s.HandleRequest(0, req, 0x01020304, 61450)

	require.NotNil(t, resp)
	assert.Equal(t, StateMasterControl, s.State)
	assert.True(t, connected)
	assert.Equal(t, uint32(0x01020306), resp.SlaveID)
	assert.Equal(t, uint8(1), resp.GroupNumber)
	assert.Equal(t, uint16(0x2211), resp.FrameSequenceNo)
	assert.Equal(t, EndCodeSuccess, resp.EndCode)
}

func TestSlaveIgnoresRequestNotAddressedToIt(t *testing.T) {
	s := New(testSlaveConfig())
	s.Startup()
	req := requestFor(0x09090909, 2)
	resp := s.HandleRequest(0, req, 0x01020304, 61450)
	assert.Nil(t, resp)
	assert.Equal(t, StateMasterNone, s.State)
}

func TestSlaveWrongNumberOccupied(t *testing.T) {
	s := New(testSlaveConfig())
	s.Startup()
	req := requestFor(0x01020306, 3) // 3 stations instead of the configured 2
	var reported int
	s.OnWrongStationCount = func(c int) { reported = c }
	resp := s.HandleRequest(0, req, 0x01020304, 61450)
	require.NotNil(t, resp)
	assert.Equal(t, EndCodeWrongNumberOccupied, resp.EndCode)
	assert.Equal(t, 3, reported)
	assert.Equal(t, StateMasterNone, s.State, "a rejected bind attempt must not bind")
}

func TestSlaveMasterDuplicationAfterBind(t *testing.T) {
	s := New(testSlaveConfig())
	s.Startup()
	req := requestFor(0x01020306, 2)
	s.HandleRequest(0, req, 0x01020304, 61450)

	var dupIP uint32
	s.OnMasterDuplication = func(ip uint32) { dupIP = ip }
	resp := s.HandleRequest(1000, req, 0x01020399, 61450)
	require.NotNil(t, resp)
	assert.Equal(t, EndCodeMasterDuplication, resp.EndCode)
	assert.Equal(t, uint32(0x01020399), dupIP)
	assert.Equal(t, StateMasterControl, s.State, "must not rebind on duplication")
}

func TestSlaveTimeoutDisconnects(t *testing.T) {
	s := New(testSlaveConfig())
	s.Startup()
	req := requestFor(0x01020306, 2)
	s.HandleRequest(0, req, 0x01020304, 61450)

	disconnected := false
	s.OnDisconnect = func() { disconnected = true }

	timeoutUs := uint32(req.TimeoutValue) * uint32(req.ParallelOffTimeoutCount) * 1000
	s.Tick(timeoutUs - 1)
	assert.Equal(t, StateMasterControl, s.State)

	s.Tick(timeoutUs)
	assert.Equal(t, StateMasterNone, s.State)
	assert.True(t, disconnected)
}

func TestSlaveDisableSendsDisconnectRequestThenDisables(t *testing.T) {
	s := New(testSlaveConfig())
	s.Startup()
	req := requestFor(0x01020306, 2)
	s.HandleRequest(0, req, 0x01020304, 61450)

	s.Disable()
	assert.Equal(t, StateWaitDisablingSlave, s.State)

	resp := s.HandleRequest(0, req, 0x01020304, 61450)
	require.NotNil(t, resp)
	assert.Equal(t, EndCodeSlaveRequestsDisconnect, resp.EndCode)
	assert.Equal(t, StateSlaveDisabled, s.State)

	assert.Nil(t, s.HandleRequest(0, req, 0x01020304, 61450))
}
