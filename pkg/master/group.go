package master

import (
	"github.com/cciefb-go/cciefb"
	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/cciefb-go/cciefb/pkg/iomap"
	"github.com/sirupsen/logrus"
)

// defaultLinkScanTimeoutUs is substituted when both timeout_value_ms and
// parallel_off_timeout_count are zero (spec §4.2: "default 1500 ms").
const defaultLinkScanTimeoutUs = 1500 * 1000

// Group is the master's link-scan engine for one group (spec §4.2).
type Group struct {
	Config config.GroupConfig
	State  GroupState

	Devices       []*Device
	TotalOccupied int
	Image         *iomap.Image

	FrameSequenceNo         uint16
	CyclicTransmissionState uint16
	TimestampLinkScanStart  uint32
	lastCompletedSeq        uint16
	haveCompletedSeq        bool
	scanStarted             bool

	MasterLocalUnitInfo uint16
	ParameterNo         uint16

	// ClockFunc returns now_unix_ms (spec §6); the group stamps every
	// emitted request's clock_info from it. Set by the owning master
	// orchestrator; defaults to 0 when nil (used in isolated tests).
	ClockFunc func() uint64

	arbitrationDeadline cciefb.Timer
	linkScanDeadline    cciefb.Timer

	// OnArbitrationFailed, OnLinkScanComplete and OnSlaveDuplication mirror
	// the application-facing callbacks of spec §6/§7.
	OnArbitrationFailed func(otherMasterIP uint32)
	OnLinkScanComplete  func()
	OnSlaveDuplication  func(slaveIP uint32)

	log *logrus.Entry
}

// NewGroup builds a Group engine from configuration, laying devices out
// at consecutive stations in configuration order.
func NewGroup(cfg config.GroupConfig) *Group {
	g := &Group{
		Config: cfg,
		State:  GroupMasterDown,
		Image:  iomap.NewImage(),
		log:    logrus.WithField("service", "[GROUP]").WithField("group_no", cfg.GroupNumber),
	}
	station := 1
	for _, d := range cfg.Devices {
		dev := NewDevice(d, station)
		g.Devices = append(g.Devices, dev)
		station += d.NumOccupiedStations
		g.TotalOccupied += d.NumOccupiedStations
	}
	return g
}

// Startup handles the group STARTUP event: enters LISTEN and arms the
// arbitration window (arbitrationTimeUs, converted from the master's
// configured arbitration_time_ms). parameter_no persistence (load/
// increment/save) is the master's responsibility, not the group's;
// the already-incremented value is passed in as parameterNo and carried
// on every request this group emits until the next restart.
func (g *Group) Startup(now uint32, arbitrationTimeUs uint32, parameterNo uint16) {
	g.State = GroupMasterListen
	g.ParameterNo = parameterNo
	g.scanStarted = false
	g.arbitrationDeadline.Arm(now, arbitrationTimeUs)
	for _, d := range g.Devices {
		d.Startup()
	}
}

// clockInfoNow reads ClockFunc, defaulting to 0 when unset.
func (g *Group) clockInfoNow() uint64 {
	if g.ClockFunc == nil {
		return 0
	}
	return g.ClockFunc()
}

// linkScanTimeoutUs computes the link-scan timeout per spec §4.2.
func (g *Group) linkScanTimeoutUs() uint32 {
	timeout := uint32(g.Config.TimeoutValueMs)
	count := uint32(g.Config.ParallelOffTimeoutCount)
	if timeout == 0 && count == 0 {
		return defaultLinkScanTimeoutUs
	}
	if timeout == 0 {
		timeout = 500
	}
	if count == 0 {
		count = 3
	}
	return timeout * count * 1000
}

// Tick advances the group's arbitration/link-scan timers. It returns a
// freshly built request if one should be emitted this tick, or nil.
func (g *Group) Tick(now uint32) *frame.Request {
	switch g.State {
	case GroupMasterListen, GroupMasterArbitration:
		if g.arbitrationDeadline.Armed() && g.arbitrationDeadline.Expired(now) {
			g.State = GroupMasterLinkScan
			g.arbitrationDeadline.Disarm()
			return g.startLinkScan(now)
		}
	case GroupMasterLinkScan:
		if g.linkScanDeadline.Expired(now) {
			g.onLinkScanTimeout()
			return g.startLinkScan(now)
		}
	case GroupMasterLinkScanComp:
		if g.Config.UseConstantLinkScanTime {
			deadline := g.TimestampLinkScanStart + uint32(g.Config.TimeoutValueMs)*1000
			if !cciefb.Expired(now, deadline) {
				return nil
			}
		}
		return g.startLinkScan(now)
	}
	return nil
}

// startLinkScan builds and emits the next link-scan request, incrementing
// frame_sequence_no and recomputing cyclic_transmission_state. Only the
// very first scan after Startup (fresh arbitration) resets the sequence
// number to 0; every later call — whether reached via normal completion
// or via a link-scan timeout retry — advances it by 1 (spec §3/§5).
func (g *Group) startLinkScan(now uint32) *frame.Request {
	if !g.scanStarted {
		g.FrameSequenceNo = 0
		g.scanStarted = true
	} else {
		g.FrameSequenceNo++
	}
	g.State = GroupMasterLinkScan
	g.TimestampLinkScanStart = now
	g.linkScanDeadline.Arm(now, g.linkScanTimeoutUs())
	g.recomputeTransmissionState()

	for _, d := range g.Devices {
		d.OnScanStart()
	}

	return g.buildRequest(now)
}

// recomputeTransmissionState rebuilds cyclic_transmission_state from each
// device's effective transmission bit (spec §4.2).
func (g *Group) recomputeTransmissionState() {
	var bitmap uint16
	for _, d := range g.Devices {
		bitmap = cciefb.SetTransmissionBit(bitmap, d.StartStation, d.EffectiveTransmissionBit())
	}
	g.CyclicTransmissionState = bitmap
}

// buildRequest assembles the wire Request for the current link-scan,
// reading RY/RWw from the group's memory image.
func (g *Group) buildRequest(now uint32) *frame.Request {
	n := g.TotalOccupied
	req := &frame.Request{
		ProtocolVersion:         2,
		MasterLocalUnitInfo:     g.MasterLocalUnitInfo,
		ClockInfo:               g.clockInfoNow(),
		GroupNumber:             g.Config.GroupNumber,
		FrameSequenceNo:         g.FrameSequenceNo,
		TimeoutValue:            g.Config.TimeoutValueMs,
		ParallelOffTimeoutCount: g.Config.ParallelOffTimeoutCount,
		ParameterNo:             g.ParameterNo,
		TotalOccupied:           uint8(n),
		CyclicTransmissionState: g.CyclicTransmissionState,
	}

	entries := make([]frame.SlaveIDListEntry, 0, len(g.Devices))
	for _, d := range g.Devices {
		entries = append(entries, frame.SlaveIDListEntry{
			IP:           d.Config.SlaveID,
			StartStation: d.StartStation,
			NumStations:  d.Config.NumOccupiedStations,
		})
	}
	req.SlaveIDs = frame.BuildSlaveIDList(n, entries)

	req.RWw = make([]uint16, n*32)
	for i := 0; i < n*32; i++ {
		req.RWw[i] = g.Image.GetRWwValue(uint32(i))
	}
	req.RY = make([][8]byte, n)
	copy(req.RY, g.Image.RY[:n])
	return req
}

// onLinkScanTimeout handles LINKSCAN_TIMEOUT: every device that has not
// responded this scan gets RECEIVE_ERROR and its timeout counter bumped.
func (g *Group) onLinkScanTimeout() {
	for _, d := range g.Devices {
		d.OnGroupTimeout(g.Config.ParallelOffTimeoutCount)
	}
}

// HandleRequestFromOther handles a valid cyclic request for this group_no
// observed from a different master during LISTEN/ARBITRATION (spec §4.2,
// §7: ARBITRATION_FAILED).
func (g *Group) HandleRequestFromOther(otherMasterIP uint32) {
	if g.State != GroupMasterListen && g.State != GroupMasterArbitration {
		return
	}
	g.log.WithField("other_master", otherMasterIP).Warn("observed request from another master during arbitration")
	if g.OnArbitrationFailed != nil {
		g.OnArbitrationFailed(otherMasterIP)
	}
}

// HandleResponse processes one response during LINK_SCAN (spec §4.2).
// During LINK_SCAN_COMP a response for the completed scan is only checked
// for slave duplication.
func (g *Group) HandleResponse(resp *frame.Response) {
	if g.State != GroupMasterLinkScan && g.State != GroupMasterLinkScanComp {
		return
	}
	if resp.FrameSequenceNo != g.FrameSequenceNo {
		if g.haveCompletedSeq && resp.FrameSequenceNo == g.lastCompletedSeq {
			return // late response to the previous scan, drop
		}
		return
	}

	var matched *Device
	for _, d := range g.Devices {
		if d.Config.SlaveID != resp.SlaveID {
			continue
		}
		if d.RespondedThisScan() {
			// Second distinct response claiming this slave_id this scan.
			d.OnSlaveDuplication()
			if g.OnSlaveDuplication != nil {
				g.OnSlaveDuplication(resp.SlaveID)
			}
			return
		}
		matched = d
		break
	}
	if matched == nil || g.State != GroupMasterLinkScan {
		return
	}

	fp := Fingerprint{
		EndCode:             resp.EndCode,
		SlaveErrCode:        resp.SlaveErrCode,
		LocalManagementInfo: resp.LocalManagementInfo,
		VendorCode:          resp.VendorCode,
		ModelCode:           resp.ModelCode,
		EquipmentVer:        resp.EquipmentVer,
		SlaveLocalUnitInfo:  resp.SlaveLocalUnitInfo,
	}
	matched.OnReceiveOK(fp, resp.EndCode, resp.SlaveErrCode)

	if resp.EndCode == 0 {
		base := uint32(matched.StartStation-1) * 32
		for i, w := range resp.RWr {
			g.Image.SetRWrValue(base+uint32(i), w)
		}
		for i, rx := range resp.RX {
			station := matched.StartStation - 1 + i
			if station >= 0 && station < len(g.Image.RX) {
				g.Image.RX[station] = rx
			}
		}
	}

	if g.allEnabledResponded() {
		g.lastCompletedSeq = g.FrameSequenceNo
		g.haveCompletedSeq = true
		g.State = GroupMasterLinkScanComp
		if g.OnLinkScanComplete != nil {
			g.OnLinkScanComplete()
		}
	}
}

func (g *Group) allEnabledResponded() bool {
	for _, d := range g.Devices {
		if d.Enabled && !d.RespondedThisScan() {
			return false
		}
	}
	return true
}
