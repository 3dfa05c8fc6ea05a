package slmp

import (
	"testing"

	"github.com/cciefb-go/cciefb"
	"github.com/cciefb-go/cciefb/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var masterMAC = cciefb.MACAddress{0x00, 0x1B, 0x19, 0x11, 0x22, 0x33}

// TestNodeSearchFullRoundTrip mirrors the spec's scenario 3.
func TestNodeSearchFullRoundTrip(t *testing.T) {
	m := NewMaster(masterMAC, 0x01020304)

	const callbackTimeUs = 2_000_000
	req, err := m.PerformNodeSearch(0, callbackTimeUs)
	require.NoError(t, err)
	assert.Len(t, req, 30)
	assert.Equal(t, frame.RejectNone, frame.ValidateSLMPRequest(req, frame.NodeSearchCommand))

	serial := frame.SerialOf(req)

	entry := &frame.NodeSearchResponseEntry{
		Serial:       serial,
		EndCode:      0,
		MAC:          cciefb.MACAddress{0x00, 0x1B, 0x19, 0xAA, 0xBB, 0xCC},
		IP:           0x01020306,
		Netmask:      0xFFFF0000,
		VendorCode:   0x3456,
		ModelCode:    0x789ABCDE,
		EquipmentVer: 0xF012,
	}
	respBuf := entry.Encode()
	assert.Len(t, respBuf, 66)

	m.HandleNodeSearchResponse(respBuf)

	var gotDB *DB
	m.OnNodeSearchComplete = func(db *DB) { gotDB = db }
	m.Tick(callbackTimeUs)

	require.NotNil(t, gotDB)
	assert.Equal(t, 1, gotDB.Stored)
	assert.Equal(t, 1, gotDB.Count)
	assert.Equal(t, uint32(0x01020306), gotDB.Entries[0].IP)
	assert.Equal(t, uint16(0x3456), gotDB.Entries[0].VendorCode)
	assert.False(t, m.NodeSearchPending())
}

func TestNodeSearchSecondAttemptWhilePendingFails(t *testing.T) {
	m := NewMaster(masterMAC, 0x01020304)
	_, err := m.PerformNodeSearch(0, 1000)
	require.NoError(t, err)
	_, err = m.PerformNodeSearch(0, 1000)
	assert.ErrorIs(t, err, cciefb.ErrSLMPPending)
}

func TestNodeSearchDBSaturates(t *testing.T) {
	m := NewMaster(masterMAC, 0x01020304)
	req, err := m.PerformNodeSearch(0, 1000)
	require.NoError(t, err)
	serial := frame.SerialOf(req)

	for i := 0; i < MaxNodeSearchDevices+5; i++ {
		entry := &frame.NodeSearchResponseEntry{Serial: serial, IP: uint32(i + 1)}
		m.HandleNodeSearchResponse(entry.Encode())
	}

	var gotDB *DB
	m.OnNodeSearchComplete = func(db *DB) { gotDB = db }
	m.Tick(1000)
	require.NotNil(t, gotDB)
	assert.Equal(t, MaxNodeSearchDevices, gotDB.Stored)
	assert.Equal(t, MaxNodeSearchDevices+5, gotDB.Count)
}

// TestSetIPTimeout mirrors the spec's scenario 4.
func TestSetIPTimeout(t *testing.T) {
	m := NewMaster(masterMAC, 0x01020304)
	targetMAC := cciefb.MACAddress{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}

	const callbackTimeUs = 500_000
	_, err := m.SetIPAddr(0, targetMAC, 0x01020309, 0xFFFFFF00, callbackTimeUs)
	require.NoError(t, err)

	var gotStatus SetIPStatus
	fired := 0
	m.OnSetIPComplete = func(s SetIPStatus) { gotStatus = s; fired++ }

	m.Tick(callbackTimeUs - 1)
	assert.Equal(t, 0, fired)

	m.Tick(callbackTimeUs)
	assert.Equal(t, 1, fired)
	assert.Equal(t, SetIPTimeout, gotStatus)
	assert.False(t, m.SetIPPending())
}

func TestSetIPSuccessOnMatchingEcho(t *testing.T) {
	m := NewMaster(masterMAC, 0x01020304)
	targetMAC := cciefb.MACAddress{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}
	req, err := m.SetIPAddr(0, targetMAC, 0x01020309, 0xFFFFFF00, 500_000)
	require.NoError(t, err)
	serial := frame.SerialOf(req)

	resp := &frame.SetIPResponse{Serial: serial, EndCode: 0, MasterMACEcho: masterMAC}
	var gotStatus SetIPStatus
	m.OnSetIPComplete = func(s SetIPStatus) { gotStatus = s }
	m.HandleSetIPResponse(resp.Encode())

	assert.Equal(t, SetIPSuccess, gotStatus)
	assert.False(t, m.SetIPPending())
}

func TestSlaveAnswersNodeSearch(t *testing.T) {
	id := Identity{
		MAC:          cciefb.MACAddress{0x00, 0x1B, 0x19, 0xAA, 0xBB, 0xCC},
		IP:           0x01020306,
		Netmask:      0xFFFF0000,
		VendorCode:   0x3456,
		ModelCode:    0x789ABCDE,
		EquipmentVer: 0xF012,
	}
	s := NewSlave(id, true)

	mreq := &frame.NodeSearchRequest{Serial: 42, MasterMAC: masterMAC, MasterIP: 0x01020304}
	respBuf := s.HandleNodeSearchRequest(mreq.Encode())
	require.NotNil(t, respBuf)

	entry := frame.DecodeNodeSearchResponse(respBuf)
	assert.Equal(t, uint16(42), entry.Serial)
	assert.Equal(t, id.IP, entry.IP)
	assert.Equal(t, id.VendorCode, entry.VendorCode)
}

func TestSlaveDeniesSetIPWhenNotAllowed(t *testing.T) {
	id := Identity{MAC: cciefb.MACAddress{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}, IP: 0x01020306}
	s := NewSlave(id, false)

	var gotAllowed, gotDidSet bool
	s.OnSetIP = func(newIP, newNetmask uint32, allowed, didSet bool) { gotAllowed, gotDidSet = allowed, didSet }

	req := &frame.SetIPRequest{Serial: 1, MasterMAC: masterMAC, TargetMAC: id.MAC, NewIP: 0x01020309, NewNetmask: 0xFFFFFF00}
	respBuf := s.HandleSetIPRequest(req.Encode())
	require.NotNil(t, respBuf)

	resp := frame.DecodeSetIPResponse(respBuf)
	assert.Equal(t, EndCodeIPSettingDenied, resp.EndCode)
	assert.False(t, gotAllowed)
	assert.False(t, gotDidSet)
	assert.Equal(t, uint32(0x01020306), id.IP, "identity must be unchanged by a denied request (copy, not shared)")
}

func TestSlaveAppliesSetIPWhenAllowed(t *testing.T) {
	id := Identity{MAC: cciefb.MACAddress{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}, IP: 0x01020306}
	s := NewSlave(id, true)
	var appliedIP, appliedNetmask uint32
	s.ApplyIP = func(newIP, newNetmask uint32) error {
		appliedIP, appliedNetmask = newIP, newNetmask
		return nil
	}

	req := &frame.SetIPRequest{Serial: 1, MasterMAC: masterMAC, TargetMAC: id.MAC, NewIP: 0x01020309, NewNetmask: 0xFFFFFF00}
	respBuf := s.HandleSetIPRequest(req.Encode())
	require.NotNil(t, respBuf)

	resp := frame.DecodeSetIPResponse(respBuf)
	assert.Equal(t, EndCodeSuccess, resp.EndCode)
	assert.Equal(t, masterMAC, resp.MasterMACEcho)
	assert.Equal(t, uint32(0x01020309), appliedIP)
	assert.Equal(t, uint32(0xFFFFFF00), appliedNetmask)
	assert.Equal(t, uint32(0x01020309), s.Identity.IP)
}

func TestSlaveIgnoresSetIPForDifferentMAC(t *testing.T) {
	id := Identity{MAC: cciefb.MACAddress{0x51, 0x52, 0x53, 0x54, 0x55, 0x56}, IP: 0x01020306}
	s := NewSlave(id, true)

	req := &frame.SetIPRequest{Serial: 1, MasterMAC: masterMAC, TargetMAC: cciefb.MACAddress{1, 2, 3, 4, 5, 6}, NewIP: 0x01020309}
	assert.Nil(t, s.HandleSetIPRequest(req.Encode()))
}
