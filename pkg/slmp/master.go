// Package slmp implements the master-side and slave-side halves of the
// SLMP discovery/addressing sub-protocol (spec §4.5): Node Search and Set
// IP, each correlated by a 16-bit serial number with a completion deadline.
package slmp

import (
	"github.com/cciefb-go/cciefb"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/sirupsen/logrus"
)

// SetIPStatus is the outcome reported to set_ip_cfm (spec §6).
type SetIPStatus int

const (
	SetIPSuccess SetIPStatus = iota
	SetIPError
	SetIPTimeout
)

func (s SetIPStatus) String() string {
	switch s {
	case SetIPSuccess:
		return "SUCCESS"
	case SetIPError:
		return "ERROR"
	case SetIPTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// nodeSearchPending tracks the single outstanding Node Search transaction.
type nodeSearchPending struct {
	serial   uint16
	deadline cciefb.Timer
	db       *DB
}

// setIPPending tracks the single outstanding Set IP transaction.
type setIPPending struct {
	serial     uint16
	targetMAC  cciefb.MACAddress
	newIP      uint32
	newNetmask uint32
	deadline   cciefb.Timer
}

// Master drives both SLMP transactions for one master instance. At most
// one of each kind may be outstanding (spec §4.5), mirroring the
// teacher's one-pending-LSS-transaction-at-a-time discipline
// (pkg/lss/master.go's WaitForResponse).
type Master struct {
	MasterMAC cciefb.MACAddress
	MasterIP  uint32

	nextSerial uint16

	nodeSearch *nodeSearchPending
	setIP      *setIPPending

	OnNodeSearchComplete func(db *DB)
	OnSetIPComplete      func(status SetIPStatus)

	log *logrus.Entry
}

// NewMaster constructs a Master bound to the given identity.
func NewMaster(mac cciefb.MACAddress, ip uint32) *Master {
	return &Master{
		MasterMAC: mac,
		MasterIP:  ip,
		log:       logrus.WithField("service", "[SLMP-MASTER]"),
	}
}

func (m *Master) freshSerial() uint16 {
	m.nextSerial++
	return m.nextSerial
}

// PerformNodeSearch starts a Node Search transaction, returning the
// request frame to broadcast. It fails with ErrSLMPPending if one is
// already outstanding.
func (m *Master) PerformNodeSearch(now uint32, callbackTimeUs uint32) ([]byte, error) {
	if m.nodeSearch != nil {
		return nil, cciefb.ErrSLMPPending
	}
	serial := m.freshSerial()
	p := &nodeSearchPending{serial: serial, db: newDB()}
	p.deadline.Arm(now, callbackTimeUs)
	m.nodeSearch = p

	req := &frame.NodeSearchRequest{Serial: serial, MasterMAC: m.MasterMAC, MasterIP: m.MasterIP}
	return req.Encode(), nil
}

// SetIPAddr starts a Set IP transaction, returning the request frame to
// send. It fails with ErrSLMPPending if one is already outstanding.
func (m *Master) SetIPAddr(now uint32, targetMAC cciefb.MACAddress, newIP, newNetmask uint32, callbackTimeUs uint32) ([]byte, error) {
	if m.setIP != nil {
		return nil, cciefb.ErrSLMPPending
	}
	serial := m.freshSerial()
	p := &setIPPending{serial: serial, targetMAC: targetMAC, newIP: newIP, newNetmask: newNetmask}
	p.deadline.Arm(now, callbackTimeUs)
	m.setIP = p

	req := &frame.SetIPRequest{Serial: serial, MasterMAC: m.MasterMAC, TargetMAC: targetMAC, NewIP: newIP, NewNetmask: newNetmask}
	return req.Encode(), nil
}

// HandleNodeSearchResponse feeds one inbound datagram to the pending Node
// Search transaction, if any. Any size/reserved/command/serial mismatch is
// silently dropped per spec §4.5, and does not collapse the pending
// transaction.
func (m *Master) HandleNodeSearchResponse(buf []byte) {
	if m.nodeSearch == nil {
		return
	}
	if frame.ValidateSLMPResponse(buf, frame.NodeSearchCommand) != frame.RejectNone {
		return
	}
	const nodeSearchResponseSize = 66 // length of NodeSearchResponseEntry.Encode
	if len(buf) != nodeSearchResponseSize {
		return
	}
	if frame.SerialOf(buf) != m.nodeSearch.serial {
		return
	}
	entry := frame.DecodeNodeSearchResponse(buf)
	m.nodeSearch.db.add(DeviceEntry{
		MAC:          entry.MAC,
		IP:           entry.IP,
		Netmask:      entry.Netmask,
		VendorCode:   entry.VendorCode,
		ModelCode:    entry.ModelCode,
		EquipmentVer: entry.EquipmentVer,
	})
}

// HandleSetIPResponse feeds one inbound datagram to the pending Set IP
// transaction, if any. The first response whose master-MAC echo matches
// ours and whose serial matches completes the transaction (spec §4.5).
func (m *Master) HandleSetIPResponse(buf []byte) {
	if m.setIP == nil {
		return
	}
	if frame.ValidateSLMPResponse(buf, frame.SetIPCommand) != frame.RejectNone {
		return
	}
	if frame.SerialOf(buf) != m.setIP.serial {
		return
	}
	resp := frame.DecodeSetIPResponse(buf)
	if resp.MasterMACEcho != m.MasterMAC {
		return
	}
	status := SetIPSuccess
	if resp.EndCode != 0 {
		status = SetIPError
	}
	m.setIP = nil
	if m.OnSetIPComplete != nil {
		m.OnSetIPComplete(status)
	}
}

// Tick checks both pending transactions' completion deadlines, firing the
// corresponding confirmation callback and clearing the pending state.
func (m *Master) Tick(now uint32) {
	if m.nodeSearch != nil && m.nodeSearch.deadline.Expired(now) {
		db := m.nodeSearch.db
		m.nodeSearch = nil
		m.log.WithField("stored", db.Stored).WithField("count", db.Count).Info("node search complete")
		if m.OnNodeSearchComplete != nil {
			m.OnNodeSearchComplete(db)
		}
	}
	if m.setIP != nil && m.setIP.deadline.Expired(now) {
		m.setIP = nil
		m.log.Warn("set ip timed out")
		if m.OnSetIPComplete != nil {
			m.OnSetIPComplete(SetIPTimeout)
		}
	}
}

// NodeSearchPending reports whether a Node Search transaction is currently
// outstanding.
func (m *Master) NodeSearchPending() bool { return m.nodeSearch != nil }

// SetIPPending reports whether a Set IP transaction is currently
// outstanding.
func (m *Master) SetIPPending() bool { return m.setIP != nil }
