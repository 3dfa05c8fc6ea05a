package cciefb

import (
	"fmt"

	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/cciefb-go/cciefb/pkg/master"
	"github.com/cciefb-go/cciefb/pkg/slmp"
	"github.com/cciefb-go/cciefb/storage"
	"github.com/sirupsen/logrus"
)

// ErrorKind tags the application-visible error_ind callback's cause
// (spec §7).
type ErrorKind int

const (
	ErrorArbitrationFailed ErrorKind = iota
	ErrorSlaveDuplication
	ErrorSlaveReportsWrongNumberOccupied
	ErrorSlaveReportsMasterDuplication
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorArbitrationFailed:
		return "ARBITRATION_FAILED"
	case ErrorSlaveDuplication:
		return "SLAVE_DUPLICATION"
	case ErrorSlaveReportsWrongNumberOccupied:
		return "SLAVE_REPORTS_WRONG_NUMBER_OCCUPIED"
	case ErrorSlaveReportsMasterDuplication:
		return "SLAVE_REPORTS_MASTER_DUPLICATION"
	default:
		return "UNKNOWN"
	}
}

// MasterState is the coarse application-visible master state carried by
// state_ind: INITIALIZING until at least one group has emitted a
// link-scan request, RUNNING afterward.
type MasterState int

const (
	MasterInitializing MasterState = iota
	MasterRunning
)

func (s MasterState) String() string {
	if s == MasterRunning {
		return "RUNNING"
	}
	return "INITIALIZING"
}

// GroupStatus is a read-only snapshot of one group's runtime state,
// returned by Master.GroupStatus (spec §3's supplemented introspection
// surface, mirroring the teacher's Network.Scan-style status helpers).
type GroupStatus struct {
	GroupNumber     uint8
	State           master.GroupState
	FrameSequenceNo uint16
}

// DeviceStatus is a read-only snapshot of one device's runtime state.
type DeviceStatus struct {
	SlaveID     uint32
	State       master.DeviceState
	Enabled     bool
	Fingerprint master.Fingerprint
}

// Master is the top-level master handle: owns every group's link-scan
// engine, the SLMP discovery service, the UDP sockets, and the persisted
// generation counter. It plays the role the teacher's Network type plays
// for a CANopen bus (the one object the application holds and drives via
// periodic ticks), generalized from one shared bus to the master's
// groups + SLMP service.
type Master struct {
	Config config.MasterConfig

	platform        Platform
	groups          []*master.Group
	slmpSvc         *slmp.Master
	cyclicSock      UDPSocket
	slmpSock        UDPSocket
	broadcastIP     uint32
	parameterNoPath string
	state           MasterState

	running        bool
	stoppedByUser  bool

	pendingEvents []func()

	OnStateChanged       func(MasterState)
	OnConnect            func(groupNo uint8, slaveID uint32)
	OnDisconnect         func(groupNo uint8, slaveID uint32)
	OnLinkScanComplete   func(groupNo uint8)
	OnAlarm              func(groupNo uint8, slaveID uint32, endCode, slaveErrCode uint16)
	OnError              func(kind ErrorKind, ip uint32, arg2 uint32)
	OnChangedSlaveInfo   func(groupNo uint8, slaveID uint32, fp master.Fingerprint)
	OnNodeSearchComplete func(db *slmp.DB)
	OnSetIPComplete      func(status slmp.SetIPStatus)

	log *logrus.Entry
}

// InitMaster validates cfg, opens the CCIEFB/SLMP sockets, loads and
// increments the persisted parameter_no (defaulting to 0 on any load
// failure, spec §3 lifecycle), and starts every group's arbitration
// window. parameterNoPath is the storage path passed to Platform.Storage
// at every save.
func InitMaster(cfg config.MasterConfig, platform Platform, parameterNoPath string) (*Master, error) {
	if platform == nil {
		return nil, ErrNoPlatform
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Master{
		Config:          cfg,
		platform:        platform,
		parameterNoPath: parameterNoPath,
		running:         true,
		log:             logrus.WithField("service", "[MASTER]").WithField("master_id", cfg.MasterID),
	}

	ifindex, err := platform.InterfaceIndexForIP(cfg.MasterID)
	if err != nil {
		return nil, fmt.Errorf("master: resolving master_id's interface: %w", err)
	}
	mac, err := platform.InterfaceMAC(ifindex)
	if err != nil {
		return nil, fmt.Errorf("master: reading interface MAC: %w", err)
	}
	if cfg.BroadcastAll {
		m.broadcastIP = IPMultiStationMarker
	} else {
		netmask, err := platform.InterfaceNetmask(ifindex)
		if err != nil {
			return nil, fmt.Errorf("master: reading interface netmask: %w", err)
		}
		m.broadcastIP = BroadcastAddress(cfg.MasterID, netmask)
	}

	m.cyclicSock, err = platform.OpenUDP(cfg.MasterID, frame.CCIEFBPort, true)
	if err != nil {
		return nil, fmt.Errorf("master: opening cyclic socket: %w", err)
	}
	m.slmpSock, err = platform.OpenUDP(cfg.MasterID, frame.SLMPPort, true)
	if err != nil {
		m.cyclicSock.Close()
		return nil, fmt.Errorf("master: opening SLMP socket: %w", err)
	}

	parameterNo := storage.LoadParameterNo(platform.Storage(), parameterNoPath) + 1
	if _, err := storage.SaveParameterNo(platform.Storage(), parameterNoPath, parameterNo); err != nil {
		m.log.WithError(err).Warn("failed to persist parameter_no")
	}

	m.slmpSvc = slmp.NewMaster(mac, cfg.MasterID)
	m.slmpSvc.OnNodeSearchComplete = func(db *slmp.DB) {
		m.queue(func() {
			if m.OnNodeSearchComplete != nil {
				m.OnNodeSearchComplete(db)
			}
		})
	}
	m.slmpSvc.OnSetIPComplete = func(status slmp.SetIPStatus) {
		m.queue(func() {
			if m.OnSetIPComplete != nil {
				m.OnSetIPComplete(status)
			}
		})
	}

	now := platform.NowMonotonicUs()
	arbitrationUs := cfg.ArbitrationTimeMs * 1000
	for _, gc := range cfg.Groups {
		g := master.NewGroup(gc)
		g.ClockFunc = platform.NowUnixMs
		m.wireGroup(g)
		g.Startup(now, arbitrationUs, parameterNo)
		m.groups = append(m.groups, g)
	}

	return m, nil
}

// wireGroup attaches queued-dispatch callbacks to a group and to every
// device it owns, translating engine-level events into the application
// callbacks of spec §6/§7.
func (m *Master) wireGroup(g *master.Group) {
	groupNo := g.Config.GroupNumber
	g.OnArbitrationFailed = func(otherMasterIP uint32) {
		m.queue(func() {
			if m.OnError != nil {
				m.OnError(ErrorArbitrationFailed, otherMasterIP, 0)
			}
		})
	}
	g.OnLinkScanComplete = func() {
		m.queue(func() {
			if m.state != MasterRunning {
				m.state = MasterRunning
				if m.OnStateChanged != nil {
					m.OnStateChanged(m.state)
				}
			}
			if m.OnLinkScanComplete != nil {
				m.OnLinkScanComplete(groupNo)
			}
		})
	}
	g.OnSlaveDuplication = func(slaveIP uint32) {
		m.queue(func() {
			if m.OnError != nil {
				m.OnError(ErrorSlaveDuplication, slaveIP, 0)
			}
		})
	}
	for _, d := range g.Devices {
		slaveID := d.Config.SlaveID
		d.OnConnect = func() {
			m.queue(func() {
				if m.OnConnect != nil {
					m.OnConnect(groupNo, slaveID)
				}
			})
		}
		d.OnDisconnect = func() {
			m.queue(func() {
				if m.OnDisconnect != nil {
					m.OnDisconnect(groupNo, slaveID)
				}
			})
		}
		d.OnAlarm = func(endCode, slaveErrCode uint16) {
			m.queue(func() {
				if m.OnAlarm != nil {
					m.OnAlarm(groupNo, slaveID, endCode, slaveErrCode)
				}
			})
		}
		d.OnChangedInfo = func(fp master.Fingerprint) {
			m.queue(func() {
				if m.OnChangedSlaveInfo != nil {
					m.OnChangedSlaveInfo(groupNo, slaveID, fp)
				}
			})
		}
	}
}

// queue defers an application callback until the end of the current
// HandlePeriodic call, per spec §5/§6: "callbacks fire from within
// handle_periodic, never from ingest directly."
func (m *Master) queue(fn func()) {
	m.pendingEvents = append(m.pendingEvents, fn)
}

// Exit tears down the master: closes both sockets. parameter_no changes
// only in InitMaster, which saves it right away, so Exit does not need to
// persist anything further.
func (m *Master) Exit() error {
	err1 := m.cyclicSock.Close()
	err2 := m.slmpSock.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (m *Master) groupByNo(groupNo uint8) *master.Group {
	for _, g := range m.groups {
		if g.Config.GroupNumber == groupNo {
			return g
		}
	}
	return nil
}

// HandlePeriodic drains both UDP sockets, ticks every group and the SLMP
// service, emits any due requests, then fires every application callback
// queued during this call (spec §5).
func (m *Master) HandlePeriodic() error {
	now := m.platform.NowMonotonicUs()

	m.drainCyclic()
	m.drainSLMP()

	for _, g := range m.groups {
		req := g.Tick(now)
		if req == nil {
			continue
		}
		req.MasterID = m.Config.MasterID
		buf, err := req.Encode()
		if err != nil {
			m.log.WithError(err).Warn("failed to encode outgoing request")
			continue
		}
		if _, err := m.cyclicSock.SendTo(m.broadcastIP, frame.CCIEFBPort, buf); err != nil {
			m.log.WithError(err).Warn("failed to send cyclic request")
		}
		if m.state != MasterRunning {
			m.state = MasterRunning
			m.queue(func() {
				if m.OnStateChanged != nil {
					m.OnStateChanged(MasterRunning)
				}
			})
		}
	}

	m.slmpSvc.Tick(now)

	events := m.pendingEvents
	m.pendingEvents = nil
	for _, ev := range events {
		ev()
	}
	return nil
}

func (m *Master) drainCyclic() {
	buf := make([]byte, frame.RequestFrameSize(16))
	for {
		n, srcIP, _, ok, err := m.cyclicSock.RecvFrom(buf)
		if err != nil {
			m.log.WithError(err).Debug("cyclic socket read error")
			return
		}
		if !ok {
			return
		}
		data := buf[:n]
		if frame.ValidateResponse(data) == frame.RejectNone {
			resp, err := frame.DecodeResponse(data)
			if err != nil {
				continue
			}
			if g := m.groupByNo(resp.GroupNumber); g != nil {
				g.HandleResponse(resp)
			}
			continue
		}
		if frame.ValidateRequest(data) == frame.RejectNone {
			req, err := frame.DecodeRequest(data)
			if err != nil || req.MasterID == m.Config.MasterID {
				continue
			}
			if g := m.groupByNo(req.GroupNumber); g != nil {
				g.HandleRequestFromOther(srcIP)
			}
		}
	}
}

func (m *Master) drainSLMP() {
	buf := make([]byte, 128)
	for {
		n, _, _, ok, err := m.slmpSock.RecvFrom(buf)
		if err != nil {
			m.log.WithError(err).Debug("SLMP socket read error")
			return
		}
		if !ok {
			return
		}
		data := buf[:n]
		m.slmpSvc.HandleNodeSearchResponse(data)
		m.slmpSvc.HandleSetIPResponse(data)
	}
}

// PerformNodeSearch issues a Node Search transaction (spec §4.5).
func (m *Master) PerformNodeSearch(callbackTimeNodeSearchMs uint32) error {
	now := m.platform.NowMonotonicUs()
	buf, err := m.slmpSvc.PerformNodeSearch(now, callbackTimeNodeSearchMs*1000)
	if err != nil {
		return err
	}
	_, err = m.slmpSock.SendTo(m.broadcastIP, frame.SLMPPort, buf)
	return err
}

// SetSlaveIPAddr issues a Set IP transaction targeting mac (spec §4.5).
func (m *Master) SetSlaveIPAddr(mac MACAddress, newIP, newNetmask uint32, callbackTimeSetIPMs uint32) error {
	now := m.platform.NowMonotonicUs()
	buf, err := m.slmpSvc.SetIPAddr(now, mac, newIP, newNetmask, callbackTimeSetIPMs*1000)
	if err != nil {
		return err
	}
	_, err = m.slmpSock.SendTo(m.broadcastIP, frame.SLMPPort, buf)
	return err
}

// SetMasterApplicationStatus sets the application status stamped into
// every group's master_local_unit_info field (spec §4.1: v1 allows
// {0,1}, v2 allows {0,1,2,3}). Here: 1 = running, 2 = stopped by the
// user, 0 = stopped otherwise; the remaining v2 value (3) is never sent.
func (m *Master) SetMasterApplicationStatus(running, stoppedByUser bool) {
	m.running = running
	m.stoppedByUser = stoppedByUser
	var info uint16
	switch {
	case running:
		info = 1
	case stoppedByUser:
		info = 2
	}
	for _, g := range m.groups {
		g.MasterLocalUnitInfo = info
	}
}

// SetSlaveCommunicationStatus enables or disables one device's
// participation in its group's link scan (spec §4.3: Enable/Disable).
func (m *Master) SetSlaveCommunicationStatus(groupNo uint8, slaveID uint32, enabled bool) error {
	d := m.findDevice(groupNo, slaveID)
	if d == nil {
		return ErrDeviceOutOfRange
	}
	if enabled {
		d.Enable()
	} else {
		d.Disable()
	}
	return nil
}

// ForceCyclicTransmissionBit sets force_transmission_bit on one device
// (spec §4.2/§4.3's effective-transmission-bit rule).
func (m *Master) ForceCyclicTransmissionBit(groupNo uint8, slaveID uint32, value bool) error {
	d := m.findDevice(groupNo, slaveID)
	if d == nil {
		return ErrDeviceOutOfRange
	}
	d.ForceTransmissionBit = value
	return nil
}

func (m *Master) findDevice(groupNo uint8, slaveID uint32) *master.Device {
	g := m.groupByNo(groupNo)
	if g == nil {
		return nil
	}
	for _, d := range g.Devices {
		if d.Config.SlaveID == slaveID {
			return d
		}
	}
	return nil
}

// GroupStatus returns a snapshot of one group's runtime state, or false
// if groupNo does not name a configured group.
func (m *Master) GroupStatus(groupNo uint8) (GroupStatus, bool) {
	g := m.groupByNo(groupNo)
	if g == nil {
		return GroupStatus{}, false
	}
	return GroupStatus{GroupNumber: groupNo, State: g.State, FrameSequenceNo: g.FrameSequenceNo}, true
}

// DeviceStatus returns a snapshot of one device's runtime state, or false
// if the (group, slave) pair does not name a configured device.
func (m *Master) DeviceStatus(groupNo uint8, slaveID uint32) (DeviceStatus, bool) {
	d := m.findDevice(groupNo, slaveID)
	if d == nil {
		return DeviceStatus{}, false
	}
	return DeviceStatus{SlaveID: slaveID, State: d.State, Enabled: d.Enabled, Fingerprint: d.Fingerprint}, true
}

// --- Memory image accessors (spec §4.6) ---

// GetRYBit reads bit b of group groupNo's RY area.
func (m *Master) GetRYBit(groupNo uint8, bit uint32) bool {
	g := m.groupByNo(groupNo)
	if g == nil {
		return false
	}
	return g.Image.GetRYBit(bit)
}

// SetRYBit sets bit b of group groupNo's RY area.
func (m *Master) SetRYBit(groupNo uint8, bit uint32, value bool) {
	if g := m.groupByNo(groupNo); g != nil {
		g.Image.SetRYBit(bit, value)
	}
}

// GetRXBit reads bit b of group groupNo's RX area.
func (m *Master) GetRXBit(groupNo uint8, bit uint32) bool {
	g := m.groupByNo(groupNo)
	if g == nil {
		return false
	}
	return g.Image.GetRXBit(bit)
}

// GetRWwValue reads register r of group groupNo's RWw area.
func (m *Master) GetRWwValue(groupNo uint8, register uint32) uint16 {
	g := m.groupByNo(groupNo)
	if g == nil {
		return 0
	}
	return g.Image.GetRWwValue(register)
}

// SetRWwValue sets register r of group groupNo's RWw area.
func (m *Master) SetRWwValue(groupNo uint8, register uint32, value uint16) {
	if g := m.groupByNo(groupNo); g != nil {
		g.Image.SetRWwValue(register, value)
	}
}

// GetRWrValue reads register r of group groupNo's RWr area.
func (m *Master) GetRWrValue(groupNo uint8, register uint32) uint16 {
	g := m.groupByNo(groupNo)
	if g == nil {
		return 0
	}
	return g.Image.GetRWrValue(register)
}

// DumpConfig is a non-mutating textual dump of the master's configuration,
// supplementing the original rtlabs c-link's clm_master_config_show.
func (m *Master) DumpConfig() string {
	ip := m.Config.MasterID
	ipStr := fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
	s := fmt.Sprintf("master_id=%s protocol_ver=%d groups=%d", ipStr, m.Config.ProtocolVersion, len(m.Config.Groups))
	for _, g := range m.Config.Groups {
		s += fmt.Sprintf("\n  group %d: timeout=%dms x%d devices=%d", g.GroupNumber, g.TimeoutValueMs, g.ParallelOffTimeoutCount, len(g.Devices))
	}
	return s
}

// DumpInternals is a non-mutating textual dump of every group's runtime
// state, supplementing clm_master_internals_show.
func (m *Master) DumpInternals() string {
	s := fmt.Sprintf("state=%s", m.state)
	for _, g := range m.groups {
		s += fmt.Sprintf("\n  group %d: state=%s seq=%d", g.Config.GroupNumber, g.State, g.FrameSequenceNo)
	}
	return s
}

// DumpCyclicData is a non-mutating textual dump of one group's cyclic
// transmission state, supplementing clm_master_cyclic_data_show.
func (m *Master) DumpCyclicData(groupNo uint8) string {
	g := m.groupByNo(groupNo)
	if g == nil {
		return ""
	}
	return fmt.Sprintf("group %d: cyclic_transmission_state=%#04x seq=%d", groupNo, g.CyclicTransmissionState, g.FrameSequenceNo)
}
