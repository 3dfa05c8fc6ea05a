// Package config defines the plain-struct configuration surface for a
// CCIEFB master or slave, its validation rules (spec §4.7), and optional
// loading from an INI file.
package config

// DeviceConfig describes one slave device as seen by the master: its
// placement inside a group's station range and its occupied-station
// width.
type DeviceConfig struct {
	Name               string
	SlaveID            uint32 // valid unicast IPv4
	NumOccupiedStations int   // 1..16
}

// GroupConfig describes one link-scan group.
type GroupConfig struct {
	GroupNumber             uint8 // 1..64
	TimeoutValueMs          uint16
	ParallelOffTimeoutCount uint16
	UseConstantLinkScanTime bool
	Devices                 []DeviceConfig
}

// MasterConfig is the full configuration of a master instance.
type MasterConfig struct {
	MasterID          uint32 // valid unicast IPv4
	ProtocolVersion   uint16 // 1 or 2
	ArbitrationTimeMs uint32
	Groups            []GroupConfig
	// BroadcastAll, when set, sends cyclic requests and SLMP discovery
	// frames to 255.255.255.255 instead of the subnet-directed address
	// computed from MasterID and the interface netmask.
	BroadcastAll bool
}

// SlaveConfig is the full configuration of a slave instance.
type SlaveConfig struct {
	SlaveID             uint32
	NumOccupiedStations int // 1..16
	VendorCode          uint16
	ModelCode           uint32
	EquipmentVer        uint16
	IPSettingAllowed    bool
}
