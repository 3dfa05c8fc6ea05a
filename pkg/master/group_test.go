package master

import (
	"testing"

	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGroupConfig() config.GroupConfig {
	return config.GroupConfig{
		GroupNumber:             1,
		TimeoutValueMs:          500,
		ParallelOffTimeoutCount: 3,
		Devices: []config.DeviceConfig{
			{Name: "d1", SlaveID: 0x01020306, NumOccupiedStations: 3},
		},
	}
}

// TestGroupEndToEndFirstLinkScan mirrors the spec's scenario 1: a 1-group,
// single 3-station-device master emits exactly one request after
// arbitration elapses, with frame_sequence_no = 0, parameter_no = 501 and
// the slave-ID list [ip, 0xFFFFFFFF, 0xFFFFFFFF].
func TestGroupEndToEndFirstLinkScan(t *testing.T) {
	g := NewGroup(testGroupConfig())
	g.ClockFunc = func() uint64 { return 0x1234 }

	var now uint32 = 0
	g.Startup(now, 2_500_000, 501)
	assert.Equal(t, GroupMasterListen, g.State)

	// Before arbitration elapses, no request is emitted.
	assert.Nil(t, g.Tick(now))

	now += 2_500_000
	req := g.Tick(now)
	require.NotNil(t, req)
	assert.Equal(t, GroupMasterLinkScan, g.State)
	assert.Equal(t, uint16(0), req.FrameSequenceNo)
	assert.Equal(t, uint16(501), req.ParameterNo)
	assert.Equal(t, uint64(0x1234), req.ClockInfo)
	assert.Equal(t, []uint32{0x01020306, frame.MultiStationMarker, frame.MultiStationMarker}, req.SlaveIDs)
}

func TestGroupHandleResponseCompletesScan(t *testing.T) {
	g := NewGroup(testGroupConfig())
	g.Startup(0, 100, 1)
	req := g.Tick(100)
	require.NotNil(t, req)

	completed := false
	g.OnLinkScanComplete = func() { completed = true }

	resp := &frame.Response{
		SlaveID:         0x01020306,
		FrameSequenceNo: req.FrameSequenceNo,
		EndCode:         0,
		RWr:             make([]uint16, 3*32),
		RX:              make([][8]byte, 3),
	}
	resp.RX[0][0] = 0xAB
	g.HandleResponse(resp)

	assert.True(t, completed)
	assert.Equal(t, GroupMasterLinkScanComp, g.State)
	assert.Equal(t, byte(0xAB), g.Image.RX[0][0])
}

func TestGroupOnLinkScanTimeoutBumpsDeviceCounters(t *testing.T) {
	g := NewGroup(testGroupConfig())
	g.Startup(0, 100, 1)
	g.Tick(100)

	linkScanTimeout := g.linkScanTimeoutUs()
	req2 := g.Tick(100 + linkScanTimeout)
	require.NotNil(t, req2)
	assert.Equal(t, uint16(1), g.Devices[0].ParallelOffTimeoutCounter)
	assert.Equal(t, uint16(1), req2.FrameSequenceNo, "a timeout retry must advance frame_sequence_no, not reset it")
}

func TestGroupHandleRequestFromOtherFiresArbitrationFailed(t *testing.T) {
	g := NewGroup(testGroupConfig())
	g.Startup(0, 1000, 1)

	var otherIP uint32
	g.OnArbitrationFailed = func(ip uint32) { otherIP = ip }
	g.HandleRequestFromOther(0x01020399)

	assert.Equal(t, uint32(0x01020399), otherIP)
	assert.Equal(t, GroupMasterListen, g.State)
}

func TestGroupSlaveDuplicationDetected(t *testing.T) {
	g := NewGroup(testGroupConfig())
	g.Startup(0, 100, 1)
	req := g.Tick(100)
	require.NotNil(t, req)

	resp := &frame.Response{SlaveID: 0x01020306, FrameSequenceNo: req.FrameSequenceNo, RWr: make([]uint16, 3*32), RX: make([][8]byte, 3)}
	g.HandleResponse(resp)

	var dupIP uint32
	g.OnSlaveDuplication = func(ip uint32) { dupIP = ip }
	g.HandleResponse(resp)
	assert.Equal(t, uint32(0x01020306), dupIP)
}

func TestGroupLinkScanTimeoutDefaultSubstitution(t *testing.T) {
	g := NewGroup(config.GroupConfig{GroupNumber: 1, Devices: []config.DeviceConfig{{SlaveID: 1, NumOccupiedStations: 1}}})
	assert.Equal(t, uint32(1500*1000), g.linkScanTimeoutUs())

	g.Config.TimeoutValueMs = 10
	assert.Equal(t, uint32(10*3*1000), g.linkScanTimeoutUs())

	g.Config.TimeoutValueMs = 0
	g.Config.ParallelOffTimeoutCount = 7
	assert.Equal(t, uint32(500*7*1000), g.linkScanTimeoutUs())
}
