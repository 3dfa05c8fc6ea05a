package master

import (
	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/sirupsen/logrus"
)

// Device is the master's per-device engine (spec §4.3): tracks one slave
// device's link-scan participation within a group.
type Device struct {
	Config config.DeviceConfig

	// StartStation is this device's 1-based placement within the group.
	StartStation int

	State                     DeviceState
	Enabled                   bool
	TransmissionBit           bool
	ForceTransmissionBit      bool
	ParallelOffTimeoutCounter uint16
	Fingerprint               Fingerprint
	respondedThisScan         bool

	// Callbacks mirror the teacher's per-event callback fields
	// (pkg/nmt's callback list, simplified to one slot per event since a
	// device has exactly one owner).
	OnConnect     func()
	OnDisconnect  func()
	OnChangedInfo func(Fingerprint)
	OnAlarm       func(endCode, slaveErrCode uint16)

	log *logrus.Entry
}

// NewDevice constructs a Device in MASTER_DOWN, enabled by default per
// spec §3 ("enabled: application-commanded inclusion; default true").
func NewDevice(cfg config.DeviceConfig, startStation int) *Device {
	return &Device{
		Config:       cfg,
		StartStation: startStation,
		State:        DeviceMasterDown,
		Enabled:      true,
		log:          logrus.WithField("service", "[DEVICE]").WithField("slave_id", cfg.SlaveID),
	}
}

// Startup handles GROUP_STARTUP.
func (d *Device) Startup() {
	if !d.Enabled {
		return
	}
	d.State = DeviceListen
	d.ParallelOffTimeoutCounter = 0
}

// OnScanStart handles SCAN_START_DEVICE_START: the group is about to emit
// a new link-scan request and expects a response from this device. A
// device in WAIT_TD stays there until it responds again.
func (d *Device) OnScanStart() {
	d.respondedThisScan = false
	if !d.Enabled {
		return
	}
	switch d.State {
	case DeviceListen, DeviceCyclicSuspend:
		d.State = DeviceCyclicSent
	}
}

// OnScanStop handles SCAN_START_DEVICE_STOP: the application disabled the
// device mid-cycle.
func (d *Device) OnScanStop() {
	d.Enabled = false
	d.State = DeviceMasterDown
}

// OnReceiveOK handles RECEIVE_OK: a valid response matched this device for
// the current frame_sequence_no. endCode != 0 fires an alarm and leaves
// the image/fingerprint untouched, per spec §4.3.
func (d *Device) OnReceiveOK(fp Fingerprint, endCode, slaveErrCode uint16) {
	wasWaitTD := d.State == DeviceWaitTD
	d.respondedThisScan = true
	d.ParallelOffTimeoutCounter = 0
	d.State = DeviceCyclicSuspend

	if endCode != 0 {
		d.log.WithField("end_code", endCode).Warn("slave reported error end_code")
		if d.OnAlarm != nil {
			d.OnAlarm(endCode, slaveErrCode)
		}
		return
	}
	if wasWaitTD && d.OnConnect != nil {
		d.OnConnect()
	}
	if fp != d.Fingerprint {
		d.Fingerprint = fp
		if d.OnChangedInfo != nil {
			d.OnChangedInfo(fp)
		}
	}
}

// OnSlaveDuplication handles the SLAVE_DUPLICATION event: two distinct
// responses in the same scan claimed this device's slave_id.
func (d *Device) OnSlaveDuplication() {
	d.respondedThisScan = false
	d.log.Warn("slave duplication detected")
}

// RespondedThisScan reports whether OnReceiveOK has already been called
// for the in-progress scan; used by the group engine to detect
// slave-duplication (a second distinct response claiming the same
// slave_id within the same scan).
func (d *Device) RespondedThisScan() bool { return d.respondedThisScan }

// OnGroupTimeout handles GROUP_TIMEOUT for a device that did not respond
// this scan (RECEIVE_ERROR, spec §4.2/§4.3).
func (d *Device) OnGroupTimeout(parallelOffTimeoutCount uint16) {
	if d.respondedThisScan || !d.Enabled {
		return
	}
	if d.State != DeviceCyclicSent && d.State != DeviceCyclicSending {
		return
	}
	d.ParallelOffTimeoutCounter++
	if d.ParallelOffTimeoutCounter >= parallelOffTimeoutCount {
		d.State = DeviceWaitTD
		d.log.Info("device timed out, transitioning to WAIT_TD")
		if d.OnDisconnect != nil {
			d.OnDisconnect()
		}
		return
	}
	d.State = DeviceCyclicSent
}

// Disable handles the application command to exclude this device from the
// cyclic exchange.
func (d *Device) Disable() {
	d.Enabled = false
	d.State = DeviceMasterDown
}

// Enable handles the application command to re-include this device.
func (d *Device) Enable() {
	d.Enabled = true
	if d.State == DeviceMasterDown {
		d.State = DeviceListen
	}
}

// EffectiveTransmissionBit computes whether this device's station bit
// should be set in cyclic_transmission_state, per spec §4.2: enabled AND
// (transmission_bit OR force_transmission_bit).
func (d *Device) EffectiveTransmissionBit() bool {
	return d.Enabled && (d.TransmissionBit || d.ForceTransmissionBit)
}
