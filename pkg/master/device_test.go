package master

import (
	"testing"

	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/stretchr/testify/assert"
)

func newTestDevice() *Device {
	return NewDevice(config.DeviceConfig{Name: "d1", SlaveID: 0x01020306, NumOccupiedStations: 3}, 1)
}

func TestDeviceStartupEntersListen(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	assert.Equal(t, DeviceListen, d.State)
	assert.True(t, d.Enabled)
}

func TestDeviceScanStartTransitionsToCyclicSent(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	d.OnScanStart()
	assert.Equal(t, DeviceCyclicSent, d.State)
	assert.False(t, d.RespondedThisScan())
}

func TestDeviceReceiveOKFiresConnectFromWaitTD(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	d.State = DeviceWaitTD
	connected := false
	d.OnConnect = func() { connected = true }
	d.OnScanStart()
	d.OnReceiveOK(Fingerprint{}, 0, 0)
	assert.True(t, connected)
	assert.Equal(t, DeviceCyclicSuspend, d.State)
	assert.True(t, d.RespondedThisScan())
}

func TestDeviceReceiveOKChangedInfoFiresOnDiff(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	d.OnScanStart()
	var fired int
	d.OnChangedInfo = func(Fingerprint) { fired++ }
	d.OnReceiveOK(Fingerprint{VendorCode: 1}, 0, 0)
	assert.Equal(t, 1, fired)
	d.OnScanStart()
	d.OnReceiveOK(Fingerprint{VendorCode: 1}, 0, 0)
	assert.Equal(t, 1, fired, "identical fingerprint must not refire")
}

func TestDeviceReceiveOKAlarmsOnNonzeroEndCode(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	d.OnScanStart()
	var gotEndCode, gotErrCode uint16
	d.OnAlarm = func(endCode, slaveErrCode uint16) { gotEndCode, gotErrCode = endCode, slaveErrCode }
	d.OnReceiveOK(Fingerprint{}, 2, 0x55)
	assert.Equal(t, uint16(2), gotEndCode)
	assert.Equal(t, uint16(0x55), gotErrCode)
}

func TestDeviceGroupTimeoutIncrementsThenDisconnects(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	d.OnScanStart()
	disconnected := false
	d.OnDisconnect = func() { disconnected = true }

	d.OnGroupTimeout(3)
	assert.Equal(t, uint16(1), d.ParallelOffTimeoutCounter)
	assert.Equal(t, DeviceCyclicSent, d.State)
	assert.False(t, disconnected)

	d.OnGroupTimeout(3)
	d.OnGroupTimeout(3)
	assert.Equal(t, DeviceWaitTD, d.State)
	assert.True(t, disconnected)
}

func TestDeviceEffectiveTransmissionBit(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	assert.False(t, d.EffectiveTransmissionBit())
	d.TransmissionBit = true
	assert.True(t, d.EffectiveTransmissionBit())
	d.TransmissionBit = false
	d.ForceTransmissionBit = true
	assert.True(t, d.EffectiveTransmissionBit())
	d.Disable()
	assert.False(t, d.EffectiveTransmissionBit())
}

func TestDeviceDisableEnable(t *testing.T) {
	d := newTestDevice()
	d.Startup()
	d.Disable()
	assert.Equal(t, DeviceMasterDown, d.State)
	assert.False(t, d.Enabled)
	d.Enable()
	assert.Equal(t, DeviceListen, d.State)
	assert.True(t, d.Enabled)
}
