// Package slave implements the slave-side connection state machine
// (spec §4.4): binds to the first master that sends a valid cyclic
// request, tracks it, and answers every subsequent request until a
// timeout or an application-commanded disable.
package slave

import (
	"github.com/cciefb-go/cciefb"
	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/cciefb-go/cciefb/pkg/iomap"
	"github.com/sirupsen/logrus"
)

// State is the slave connection state machine's state (spec §4.4).
type State int

const (
	StateSlaveDown State = iota
	StateMasterNone
	StateMasterControl
	StateSlaveDisabled
	StateWaitDisablingSlave
)

func (s State) String() string {
	switch s {
	case StateSlaveDown:
		return "SLAVE_DOWN"
	case StateMasterNone:
		return "MASTER_NONE"
	case StateMasterControl:
		return "MASTER_CONTROL"
	case StateSlaveDisabled:
		return "SLAVE_DISABLED"
	case StateWaitDisablingSlave:
		return "WAIT_DISABLING_SLAVE"
	default:
		return "UNKNOWN"
	}
}

// End codes a response may carry (spec §4.4, §7).
const (
	EndCodeSuccess             uint16 = 0
	EndCodeMasterDuplication   uint16 = 1
	EndCodeWrongNumberOccupied uint16 = 2
	EndCodeSlaveRequestsDisconnect uint16 = 3
)

// BoundMaster is the remote master a slave is currently bound to
// (spec §4.4: "bound master (IP, port, group_no, my_slave_station_no,
// total_occupied_in_group)").
type BoundMaster struct {
	IP                  uint32
	Port                uint16
	GroupNumber         uint8
	MyStationNo         int
	TotalOccupiedInGroup int
}

// Slave is one slave connection's state.
type Slave struct {
	Config config.SlaveConfig
	State  State

	Bound           BoundMaster
	bound           bool
	frameSequenceNo uint16
	clockInfo       uint64
	parameterNo     uint16

	timeoutDeadline cciefb.Timer

	Image *iomap.Image

	ApplicationRunning    bool
	ApplicationStoppedByUser bool
	LocalManagementInfo   uint32
	SlaveErrCode          uint16

	OnConnect        func()
	OnDisconnect     func()
	OnMasterDuplication func(otherMasterIP uint32)
	OnWrongStationCount func(reportedGroupTotal int)

	log *logrus.Entry
}

// New constructs a Slave in SLAVE_DOWN.
func New(cfg config.SlaveConfig) *Slave {
	return &Slave{
		Config: cfg,
		State:  StateSlaveDown,
		Image:  iomap.NewImage(),
		log:    logrus.WithField("service", "[SLAVE]").WithField("slave_id", cfg.SlaveID),
	}
}

// Startup handles the STARTUP event: enters MASTER_NONE.
func (s *Slave) Startup() {
	s.State = StateMasterNone
	s.bound = false
}

// HandleRequest processes one already-validated, already-decoded cyclic
// request, locating this slave within it by its own slave_id (spec §4.1's
// slave-ID list analysis). It returns the response to send, or nil if no
// response should be sent (disabled, or this slave's ID is not present).
func (s *Slave) HandleRequest(now uint32, req *frame.Request, srcIP uint32, srcPort uint16) *frame.Response {
	switch s.State {
	case StateSlaveDisabled:
		return nil
	case StateWaitDisablingSlave:
		resp := s.buildResponse(EndCodeSlaveRequestsDisconnect)
		s.State = StateSlaveDisabled
		return resp
	}

	analysis, err := frame.AnalyzeSlaveIDList(req.SlaveIDs, s.Config.SlaveID)
	if err != nil || !analysis.Found {
		return nil
	}
	stationInGroup := analysis.MyStationNo

	if s.Config.NumOccupiedStations != analysis.OccupationCount {
		if s.OnWrongStationCount != nil {
			s.OnWrongStationCount(analysis.OccupationCount)
		}
		return s.buildResponse(EndCodeWrongNumberOccupied)
	}

	if !s.bound {
		s.bind(srcIP, srcPort, req, stationInGroup)
		s.rearm(now, req)
		if s.OnConnect != nil {
			s.OnConnect()
		}
		return s.buildResponse(EndCodeSuccess)
	}

	if s.Bound.IP != srcIP || s.Bound.GroupNumber != req.GroupNumber {
		s.log.WithField("other_master", srcIP).Warn("request from a different master while bound")
		if s.OnMasterDuplication != nil {
			s.OnMasterDuplication(srcIP)
		}
		return s.buildResponse(EndCodeMasterDuplication)
	}

	s.frameSequenceNo = req.FrameSequenceNo
	s.clockInfo = req.ClockInfo
	s.parameterNo = req.ParameterNo
	s.rearm(now, req)

	n := s.Config.NumOccupiedStations
	base := uint32(stationInGroup-1) * 32
	for i := 0; i < n*32; i++ {
		s.Image.SetRWwValue(uint32(i), req.RWw[int(base)+i])
	}
	for i := 0; i < n; i++ {
		s.Image.RY[i] = req.RY[stationInGroup-1+i]
	}

	return s.buildResponse(EndCodeSuccess)
}

func (s *Slave) bind(srcIP uint32, srcPort uint16, req *frame.Request, stationInGroup int) {
	s.Bound = BoundMaster{
		IP:                   srcIP,
		Port:                 srcPort,
		GroupNumber:          req.GroupNumber,
		MyStationNo:          stationInGroup,
		TotalOccupiedInGroup: int(req.TotalOccupied),
	}
	s.bound = true
	s.State = StateMasterControl
	s.frameSequenceNo = req.FrameSequenceNo
	s.clockInfo = req.ClockInfo
	s.parameterNo = req.ParameterNo
}

// rearm computes the slave's watchdog period from the master's request,
// mirroring pkg/master.Group.linkScanTimeoutUs's zero-substitution rule
// (timeout_value==0 -> 500, parallel_off_timeout_count==0 -> 3, both
// zero -> the 1500ms default) so the slave times out its master exactly
// when the master's own link-scan timeout would fire.
func (s *Slave) rearm(now uint32, req *frame.Request) {
	timeout := uint32(req.TimeoutValue)
	count := uint32(req.ParallelOffTimeoutCount)
	var us uint32
	if timeout == 0 && count == 0 {
		us = defaultLinkScanTimeoutUs
	} else {
		if timeout == 0 {
			timeout = 500
		}
		if count == 0 {
			count = 3
		}
		us = timeout * count * 1000
	}
	s.timeoutDeadline.Arm(now, us)
}

const defaultLinkScanTimeoutUs = 1500 * 1000

func (s *Slave) buildResponse(endCode uint16) *frame.Response {
	n := s.Config.NumOccupiedStations
	resp := &frame.Response{
		ProtocolVersion:     2,
		EndCode:             endCode,
		VendorCode:          s.Config.VendorCode,
		ModelCode:           s.Config.ModelCode,
		EquipmentVer:        s.Config.EquipmentVer,
		SlaveLocalUnitInfo:  boolToUint16(s.ApplicationRunning),
		SlaveErrCode:        s.SlaveErrCode,
		LocalManagementInfo: s.LocalManagementInfo,
		SlaveID:             s.Config.SlaveID,
		GroupNumber:         s.Bound.GroupNumber,
		FrameSequenceNo:     s.frameSequenceNo,
		RWr:                 make([]uint16, n*32),
		RX:                  make([][8]byte, n),
	}
	for i := 0; i < n*32; i++ {
		resp.RWr[i] = s.Image.GetRWrValue(uint32(i))
	}
	copy(resp.RX, s.Image.RX[:n])
	return resp
}

func boolToUint16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// Tick checks the bound-master timeout (spec §4.4: TIMEOUT_MASTER).
func (s *Slave) Tick(now uint32) {
	if s.State != StateMasterControl {
		return
	}
	if s.timeoutDeadline.Expired(now) {
		s.log.Info("master timed out, dropping to MASTER_NONE")
		s.bound = false
		s.State = StateMasterNone
		if s.OnDisconnect != nil {
			s.OnDisconnect()
		}
	}
}

// Disable handles DISABLE_SLAVE: the slave will send one final response
// with SLAVE_REQUESTS_DISCONNECT end code then stop responding.
func (s *Slave) Disable() {
	if s.State == StateMasterControl {
		s.State = StateWaitDisablingSlave
		return
	}
	s.State = StateSlaveDisabled
}

// Reenable handles REENABLE_SLAVE.
func (s *Slave) Reenable() {
	s.bound = false
	s.State = StateMasterNone
}

// OnIPUpdated handles the IP_UPDATED event fired after a successful
// Set-IP transaction: forces a rebind attempt.
func (s *Slave) OnIPUpdated() {
	s.bound = false
	s.State = StateMasterNone
}
