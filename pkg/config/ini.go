package config

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/ini.v1"
)

// LoadMasterConfigINI reads a MasterConfig from an INI file. Section
// layout mirrors the teacher's EDS sections
// (pkg/od/parser.go's "index" / "indexsubindex" convention), here
// "group:<n>" and "group:<n>.device:<m>":
//
//	[master]
//	master_id = 1.2.3.4
//	arbitration_time_ms = 2500
//
//	[group:1]
//	timeout_value_ms = 500
//	parallel_off_timeout_count = 3
//
//	[group:1.device:1]
//	name = valve1
//	slave_id = 1.2.3.6
//	num_occupied_stations = 3
func LoadMasterConfigINI(path string) (*MasterConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}

	masterSec, err := f.GetSection("master")
	if err != nil {
		return nil, fmt.Errorf("config: %s: missing [master] section", path)
	}
	masterID, err := ipFromString(masterSec.Key("master_id").String())
	if err != nil {
		return nil, err
	}
	cfg := &MasterConfig{
		MasterID:          masterID,
		ProtocolVersion:   uint16(masterSec.Key("protocol_ver").MustUint(2)),
		ArbitrationTimeMs: uint32(masterSec.Key("arbitration_time_ms").MustUint(2500)),
		BroadcastAll:      masterSec.Key("broadcast_all").MustBool(false),
	}

	groups := map[uint8]*GroupConfig{}
	var groupOrder []uint8

	for _, sec := range f.Sections() {
		var groupNo int
		if n, scanErr := fmt.Sscanf(sec.Name(), "group:%d", &groupNo); scanErr == nil && n == 1 {
			g := &GroupConfig{
				GroupNumber:             uint8(groupNo),
				TimeoutValueMs:          uint16(sec.Key("timeout_value_ms").MustUint(0)),
				ParallelOffTimeoutCount: uint16(sec.Key("parallel_off_timeout_count").MustUint(0)),
				UseConstantLinkScanTime: sec.Key("use_constant_link_scan_time").MustBool(false),
			}
			groups[uint8(groupNo)] = g
			groupOrder = append(groupOrder, uint8(groupNo))
		}
	}
	sort.Slice(groupOrder, func(i, j int) bool { return groupOrder[i] < groupOrder[j] })

	for _, sec := range f.Sections() {
		var groupNo, deviceNo int
		n, scanErr := fmt.Sscanf(sec.Name(), "group:%d.device:%d", &groupNo, &deviceNo)
		if scanErr != nil || n != 2 {
			continue
		}
		g, ok := groups[uint8(groupNo)]
		if !ok {
			return nil, fmt.Errorf("config: %s: device in undeclared group %d", path, groupNo)
		}
		slaveID, err := ipFromString(sec.Key("slave_id").String())
		if err != nil {
			return nil, err
		}
		g.Devices = append(g.Devices, DeviceConfig{
			Name:                sec.Key("name").String(),
			SlaveID:             slaveID,
			NumOccupiedStations: sec.Key("num_occupied_stations").MustInt(1),
		})
	}

	for _, no := range groupOrder {
		cfg.Groups = append(cfg.Groups, *groups[no])
	}
	return cfg, nil
}

// SaveMasterConfigINI writes cfg to path in the layout LoadMasterConfigINI
// understands.
func SaveMasterConfigINI(cfg *MasterConfig, path string) error {
	f := ini.Empty()

	masterSec, err := f.NewSection("master")
	if err != nil {
		return err
	}
	if _, err := masterSec.NewKey("master_id", ipToString(cfg.MasterID)); err != nil {
		return err
	}
	if _, err := masterSec.NewKey("protocol_ver", strconv.FormatUint(uint64(cfg.ProtocolVersion), 10)); err != nil {
		return err
	}
	if _, err := masterSec.NewKey("arbitration_time_ms", strconv.FormatUint(uint64(cfg.ArbitrationTimeMs), 10)); err != nil {
		return err
	}
	if _, err := masterSec.NewKey("broadcast_all", strconv.FormatBool(cfg.BroadcastAll)); err != nil {
		return err
	}

	for _, g := range cfg.Groups {
		groupSec, err := f.NewSection(fmt.Sprintf("group:%d", g.GroupNumber))
		if err != nil {
			return err
		}
		if _, err := groupSec.NewKey("timeout_value_ms", strconv.FormatUint(uint64(g.TimeoutValueMs), 10)); err != nil {
			return err
		}
		if _, err := groupSec.NewKey("parallel_off_timeout_count", strconv.FormatUint(uint64(g.ParallelOffTimeoutCount), 10)); err != nil {
			return err
		}
		if _, err := groupSec.NewKey("use_constant_link_scan_time", strconv.FormatBool(g.UseConstantLinkScanTime)); err != nil {
			return err
		}
		for i, d := range g.Devices {
			devSec, err := f.NewSection(fmt.Sprintf("group:%d.device:%d", g.GroupNumber, i+1))
			if err != nil {
				return err
			}
			if _, err := devSec.NewKey("name", d.Name); err != nil {
				return err
			}
			if _, err := devSec.NewKey("slave_id", ipToString(d.SlaveID)); err != nil {
				return err
			}
			if _, err := devSec.NewKey("num_occupied_stations", strconv.Itoa(d.NumOccupiedStations)); err != nil {
				return err
			}
		}
	}

	return f.SaveTo(path)
}

// LoadSlaveConfigINI reads a SlaveConfig from an INI file:
//
//	[slave]
//	slave_id = 1.2.3.6
//	num_occupied_stations = 2
//	vendor_code = 0x3456
//	model_code = 0x789ABCDE
//	equipment_ver = 0xF012
func LoadSlaveConfigINI(path string) (*SlaveConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", path, err)
	}
	sec, err := f.GetSection("slave")
	if err != nil {
		return nil, fmt.Errorf("config: %s: missing [slave] section", path)
	}
	slaveID, err := ipFromString(sec.Key("slave_id").String())
	if err != nil {
		return nil, err
	}
	vendorCode, err := strconv.ParseUint(sec.Key("vendor_code").MustString("0"), 0, 16)
	if err != nil {
		return nil, fmt.Errorf("config: %s: vendor_code: %w", path, err)
	}
	modelCode, err := strconv.ParseUint(sec.Key("model_code").MustString("0"), 0, 32)
	if err != nil {
		return nil, fmt.Errorf("config: %s: model_code: %w", path, err)
	}
	equipVer, err := strconv.ParseUint(sec.Key("equipment_ver").MustString("0"), 0, 16)
	if err != nil {
		return nil, fmt.Errorf("config: %s: equipment_ver: %w", path, err)
	}
	return &SlaveConfig{
		SlaveID:             slaveID,
		NumOccupiedStations: sec.Key("num_occupied_stations").MustInt(1),
		VendorCode:          uint16(vendorCode),
		ModelCode:           uint32(modelCode),
		EquipmentVer:        uint16(equipVer),
		IPSettingAllowed:    sec.Key("ip_setting_allowed").MustBool(false),
	}, nil
}

// SaveSlaveConfigINI writes cfg to path in the layout LoadSlaveConfigINI
// understands.
func SaveSlaveConfigINI(cfg *SlaveConfig, path string) error {
	f := ini.Empty()
	sec, err := f.NewSection("slave")
	if err != nil {
		return err
	}
	if _, err := sec.NewKey("slave_id", ipToString(cfg.SlaveID)); err != nil {
		return err
	}
	if _, err := sec.NewKey("num_occupied_stations", strconv.Itoa(cfg.NumOccupiedStations)); err != nil {
		return err
	}
	if _, err := sec.NewKey("vendor_code", "0x"+strconv.FormatUint(uint64(cfg.VendorCode), 16)); err != nil {
		return err
	}
	if _, err := sec.NewKey("model_code", "0x"+strconv.FormatUint(uint64(cfg.ModelCode), 16)); err != nil {
		return err
	}
	if _, err := sec.NewKey("equipment_ver", "0x"+strconv.FormatUint(uint64(cfg.EquipmentVer), 16)); err != nil {
		return err
	}
	if _, err := sec.NewKey("ip_setting_allowed", strconv.FormatBool(cfg.IPSettingAllowed)); err != nil {
		return err
	}
	return f.SaveTo(path)
}
