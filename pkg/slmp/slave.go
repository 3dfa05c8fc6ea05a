package slmp

import (
	"github.com/cciefb-go/cciefb"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/sirupsen/logrus"
)

// EndCode values an SLMP slave response may carry.
const (
	EndCodeSuccess        uint16 = 0
	EndCodeIPSettingDenied uint16 = 1
)

// Identity is the static device info a slave answers Node Search with.
type Identity struct {
	MAC          cciefb.MACAddress
	IP           uint32
	Netmask      uint32
	VendorCode   uint16
	ModelCode    uint32
	EquipmentVer uint16
}

// Slave answers inbound Node Search and Set IP requests. Set-IP actually
// changing the interface address is delegated to the caller (via
// ApplyIP), since that is a platform operation (spec §6:
// set_ip_netmask(ifindex, ip, netmask)), not something this package can
// do on its own.
type Slave struct {
	Identity Identity

	// IPSettingAllowed mirrors config.SlaveConfig.IPSettingAllowed: when
	// false, Set IP requests are always answered with EndCodeIPSettingDenied
	// and ApplyIP is never called.
	IPSettingAllowed bool

	// ApplyIP performs the actual address change; it is only invoked when
	// IPSettingAllowed is true and the request targets our MAC.
	ApplyIP func(newIP, newNetmask uint32) error

	OnNodeSearch func()
	OnSetIP      func(newIP, newNetmask uint32, allowed, didSet bool)

	log *logrus.Entry
}

// NewSlave constructs a Slave responder for the given static identity.
func NewSlave(id Identity, ipSettingAllowed bool) *Slave {
	return &Slave{
		Identity:         id,
		IPSettingAllowed: ipSettingAllowed,
		log:              logrus.WithField("service", "[SLMP-SLAVE]"),
	}
}

// HandleNodeSearchRequest answers a broadcast Node Search request with
// this device's identity. It returns nil if the frame does not validate
// as a Node Search request.
func (s *Slave) HandleNodeSearchRequest(buf []byte) []byte {
	if frame.ValidateSLMPRequest(buf, frame.NodeSearchCommand) != frame.RejectNone {
		return nil
	}
	req := frame.DecodeNodeSearchRequest(buf)
	if s.OnNodeSearch != nil {
		s.OnNodeSearch()
	}
	resp := &frame.NodeSearchResponseEntry{
		Serial:       req.Serial,
		EndCode:      EndCodeSuccess,
		MAC:          s.Identity.MAC,
		IP:           s.Identity.IP,
		Netmask:      s.Identity.Netmask,
		VendorCode:   s.Identity.VendorCode,
		ModelCode:    s.Identity.ModelCode,
		EquipmentVer: s.Identity.EquipmentVer,
	}
	return resp.Encode()
}

// HandleSetIPRequest answers a Set IP request directed at this device's
// MAC. It returns nil if the frame does not validate, or does not target
// this device.
func (s *Slave) HandleSetIPRequest(buf []byte) []byte {
	if frame.ValidateSLMPRequest(buf, frame.SetIPCommand) != frame.RejectNone {
		return nil
	}
	req := frame.DecodeSetIPRequest(buf)
	if req.TargetMAC != s.Identity.MAC {
		return nil
	}

	allowed := s.IPSettingAllowed
	didSet := false
	endCode := EndCodeIPSettingDenied
	if allowed {
		if s.ApplyIP == nil || s.ApplyIP(req.NewIP, req.NewNetmask) == nil {
			didSet = true
			endCode = EndCodeSuccess
			s.Identity.IP = req.NewIP
			s.Identity.Netmask = req.NewNetmask
		} else {
			s.log.Warn("failed to apply new ip/netmask")
		}
	}
	if s.OnSetIP != nil {
		s.OnSetIP(req.NewIP, req.NewNetmask, allowed, didSet)
	}

	resp := &frame.SetIPResponse{Serial: req.Serial, EndCode: endCode, MasterMACEcho: req.MasterMAC}
	return resp.Encode()
}
