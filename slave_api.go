package cciefb

import (
	"fmt"

	"github.com/cciefb-go/cciefb/pkg/config"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/cciefb-go/cciefb/pkg/slave"
	"github.com/cciefb-go/cciefb/pkg/slmp"
	"github.com/sirupsen/logrus"
)

// Slave is the top-level slave handle: owns the connection state machine,
// the SLMP responder, and the two UDP sockets. Mirrors Master's shape at
// a smaller scale, the way the teacher's local node and remote node share
// a common event-driven core under two differently-sized facades.
type Slave struct {
	Config config.SlaveConfig

	platform   Platform
	core       *slave.Slave
	slmpSlave  *slmp.Slave
	cyclicSock UDPSocket
	slmpSock   UDPSocket
	ifindex    int

	connected bool

	pendingEvents []func()

	OnConnect       func()
	OnDisconnect    func()
	OnMasterRunning func(connected, running, stoppedByUser bool, protocolVer uint16, masterApplicationStatus uint16)
	OnError         func(kind ErrorKind, arg uint32)
	OnNodeSearch    func()
	OnSetIP         func(newIP, newNetmask uint32, allowed, didSet bool)

	log *logrus.Entry
}

// InitSlave validates cfg, opens the CCIEFB/SLMP sockets (bound to
// INADDR_ANY so broadcast requests are received regardless of the
// station's current address), and starts the connection state machine in
// MASTER_NONE.
func InitSlave(cfg config.SlaveConfig, platform Platform) (*Slave, error) {
	if platform == nil {
		return nil, ErrNoPlatform
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Slave{
		Config:   cfg,
		platform: platform,
		core:     slave.New(cfg),
		log:      logrus.WithField("service", "[SLAVE]").WithField("slave_id", cfg.SlaveID),
	}

	ifindex, err := platform.InterfaceIndexForIP(cfg.SlaveID)
	if err != nil {
		return nil, fmt.Errorf("slave: resolving slave_id's interface: %w", err)
	}
	s.ifindex = ifindex
	mac, err := platform.InterfaceMAC(ifindex)
	if err != nil {
		return nil, fmt.Errorf("slave: reading interface MAC: %w", err)
	}
	netmask, err := platform.InterfaceNetmask(ifindex)
	if err != nil {
		return nil, fmt.Errorf("slave: reading interface netmask: %w", err)
	}

	s.cyclicSock, err = platform.OpenUDP(0, frame.CCIEFBPort, true)
	if err != nil {
		return nil, fmt.Errorf("slave: opening cyclic socket: %w", err)
	}
	s.slmpSock, err = platform.OpenUDP(0, frame.SLMPPort, true)
	if err != nil {
		s.cyclicSock.Close()
		return nil, fmt.Errorf("slave: opening SLMP socket: %w", err)
	}

	s.slmpSlave = slmp.NewSlave(slmp.Identity{
		MAC:      mac,
		IP:       cfg.SlaveID,
		Netmask:  netmask,
		VendorCode: cfg.VendorCode,
		ModelCode:  cfg.ModelCode,
		EquipmentVer: cfg.EquipmentVer,
	}, cfg.IPSettingAllowed)
	s.slmpSlave.ApplyIP = func(newIP, newNetmask uint32) error {
		return platform.SetInterfaceAddress(s.ifindex, newIP, newNetmask)
	}
	s.slmpSlave.OnNodeSearch = func() {
		s.queue(func() {
			if s.OnNodeSearch != nil {
				s.OnNodeSearch()
			}
		})
	}
	s.slmpSlave.OnSetIP = func(newIP, newNetmask uint32, allowed, didSet bool) {
		if didSet {
			s.core.OnIPUpdated()
		}
		s.queue(func() {
			if s.OnSetIP != nil {
				s.OnSetIP(newIP, newNetmask, allowed, didSet)
			}
		})
	}

	s.core.OnConnect = func() {
		s.queue(func() {
			s.connected = true
			if s.OnConnect != nil {
				s.OnConnect()
			}
		})
	}
	s.core.OnDisconnect = func() {
		s.queue(func() {
			s.connected = false
			if s.OnDisconnect != nil {
				s.OnDisconnect()
			}
		})
	}
	s.core.OnMasterDuplication = func(otherMasterIP uint32) {
		s.queue(func() {
			if s.OnError != nil {
				s.OnError(ErrorSlaveReportsMasterDuplication, otherMasterIP)
			}
		})
	}
	s.core.OnWrongStationCount = func(reportedGroupTotal int) {
		s.queue(func() {
			if s.OnError != nil {
				s.OnError(ErrorSlaveReportsWrongNumberOccupied, uint32(reportedGroupTotal))
			}
		})
	}

	s.core.Startup()
	return s, nil
}

func (s *Slave) queue(fn func()) {
	s.pendingEvents = append(s.pendingEvents, fn)
}

// Exit closes both sockets.
func (s *Slave) Exit() error {
	err1 := s.cyclicSock.Close()
	err2 := s.slmpSock.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// HandlePeriodic drains both sockets, ticks the timeout watchdog, then
// fires every application callback queued during this call.
func (s *Slave) HandlePeriodic() error {
	now := s.platform.NowMonotonicUs()

	s.drainCyclic(now)
	s.drainSLMP()
	s.core.Tick(now)

	events := s.pendingEvents
	s.pendingEvents = nil
	for _, ev := range events {
		ev()
	}
	return nil
}

func (s *Slave) drainCyclic(now uint32) {
	buf := make([]byte, frame.RequestFrameSize(16))
	for {
		n, srcIP, srcPort, ok, err := s.cyclicSock.RecvFrom(buf)
		if err != nil {
			s.log.WithError(err).Debug("cyclic socket read error")
			return
		}
		if !ok {
			return
		}
		data := buf[:n]
		if frame.ValidateRequest(data) != frame.RejectNone {
			continue
		}
		req, err := frame.DecodeRequest(data)
		if err != nil {
			continue
		}
		resp := s.core.HandleRequest(now, req, srcIP, srcPort)
		if resp == nil {
			continue
		}
		if resp.EndCode == 0 {
			s.fireMasterRunning(req)
		}
		out, err := resp.Encode()
		if err != nil {
			s.log.WithError(err).Warn("failed to encode response")
			continue
		}
		if _, err := s.cyclicSock.SendTo(srcIP, srcPort, out); err != nil {
			s.log.WithError(err).Warn("failed to send response")
		}
	}
}

// fireMasterRunning decodes master_local_unit_info back into
// running/stopped_by_user, the inverse of Master.SetMasterApplicationStatus's
// encoding (spec §4.1: v1 {0,1}, v2 {0,1,2,3}).
func (s *Slave) fireMasterRunning(req *frame.Request) {
	running := req.MasterLocalUnitInfo == 1
	stoppedByUser := req.MasterLocalUnitInfo == 2
	connected := s.connected
	protocolVer := req.ProtocolVersion
	info := req.MasterLocalUnitInfo
	s.queue(func() {
		if s.OnMasterRunning != nil {
			s.OnMasterRunning(connected, running, stoppedByUser, protocolVer, info)
		}
	})
}

func (s *Slave) drainSLMP() {
	buf := make([]byte, 128)
	for {
		n, srcIP, _, ok, err := s.slmpSock.RecvFrom(buf)
		if err != nil {
			s.log.WithError(err).Debug("SLMP socket read error")
			return
		}
		if !ok {
			return
		}
		data := buf[:n]
		if resp := s.slmpSlave.HandleNodeSearchRequest(data); resp != nil {
			s.slmpSock.SendTo(srcIP, frame.SLMPPort, resp)
			continue
		}
		if resp := s.slmpSlave.HandleSetIPRequest(data); resp != nil {
			s.slmpSock.SendTo(srcIP, frame.SLMPPort, resp)
		}
	}
}

// SetSlaveApplicationStatus sets the application-running flag stamped
// into slave_local_unit_info (spec §4.1).
func (s *Slave) SetSlaveApplicationStatus(running bool) {
	s.core.ApplicationRunning = running
}

// SetLocalManagementInfo sets local_management_info, echoed in every
// response (spec §4.1).
func (s *Slave) SetLocalManagementInfo(value uint32) {
	s.core.LocalManagementInfo = value
}

// SetSlaveErrorCode sets slave_err_code, echoed in every response.
func (s *Slave) SetSlaveErrorCode(code uint16) {
	s.core.SlaveErrCode = code
}

// StopCyclicData stops responding to cyclic requests (spec's
// DISABLE_SLAVE event). dueToError is accepted for API symmetry with the
// spec's conceptual surface; both causes drive the same state transition.
func (s *Slave) StopCyclicData(dueToError bool) {
	s.core.Disable()
}

// RestartCyclicData resumes responding to cyclic requests (REENABLE_SLAVE).
func (s *Slave) RestartCyclicData() {
	s.core.Reenable()
}

// --- Memory image accessors (spec §4.6) ---

// GetRYBit reads bit b of this slave's RY area (values written by the
// bound master).
func (s *Slave) GetRYBit(bit uint32) bool { return s.core.Image.GetRYBit(bit) }

// SetRXBit publishes bit b of this slave's RX area.
func (s *Slave) SetRXBit(bit uint32, value bool) { s.core.Image.SetRXBit(bit, value) }

// GetRWwValue reads register r of this slave's RWw area (values written
// by the bound master).
func (s *Slave) GetRWwValue(register uint32) uint16 { return s.core.Image.GetRWwValue(register) }

// SetRWrValue publishes register r of this slave's RWr area.
func (s *Slave) SetRWrValue(register uint32, value uint16) {
	s.core.Image.SetRWrValue(register, value)
}
