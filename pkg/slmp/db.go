package slmp

import "github.com/cciefb-go/cciefb"

// MaxNodeSearchDevices bounds the node-search database (spec §4.5): once
// stored entries reach this count, further discoveries still advance
// Count but are no longer recorded.
const MaxNodeSearchDevices = 64

// DeviceEntry is one discovered device (spec §4.5: "{mac, ip, netmask,
// vendor, model, equip_ver}").
type DeviceEntry struct {
	MAC          cciefb.MACAddress
	IP           uint32
	Netmask      uint32
	VendorCode   uint16
	ModelCode    uint32
	EquipmentVer uint16
}

// DB is a node-search result snapshot: Stored is len(Entries); Count is
// the number of responses that matched the outstanding serial, including
// any dropped once Stored saturated at MaxNodeSearchDevices.
type DB struct {
	Entries []DeviceEntry
	Stored  int
	Count   int
}

func newDB() *DB { return &DB{} }

func (db *DB) add(e DeviceEntry) {
	db.Count++
	if len(db.Entries) >= MaxNodeSearchDevices {
		return
	}
	db.Entries = append(db.Entries, e)
	db.Stored = len(db.Entries)
}
