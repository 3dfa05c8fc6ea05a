package config

import (
	"errors"
	"fmt"

	"github.com/cciefb-go/cciefb"
)

var (
	ErrNoGroups         = errors.New("config: master must have at least one group")
	ErrTooManyGroups    = errors.New("config: at most 64 groups allowed")
	ErrDuplicateGroupNo = errors.New("config: duplicate group_no")
	ErrNoDevices        = errors.New("config: group must have at least one device")
	ErrGroupOverfull    = errors.New("config: sum of occupied stations in group exceeds 16")
	ErrDuplicateSlaveID = errors.New("config: slave_id used by more than one device")
)

// Validate checks a MasterConfig against spec §4.7's static rules. It
// returns the first violation found; callers needing every violation
// should call GroupConfig.Validate per group themselves.
func (c *MasterConfig) Validate() error {
	if !cciefb.IsValidUnicastIP(c.MasterID) {
		return fmt.Errorf("%w: master_id", cciefb.ErrInvalidConfig)
	}
	if c.ProtocolVersion != 1 && c.ProtocolVersion != 2 {
		return fmt.Errorf("%w: protocol_ver must be 1 or 2", cciefb.ErrInvalidConfig)
	}
	if len(c.Groups) == 0 {
		return ErrNoGroups
	}
	if len(c.Groups) > 64 {
		return ErrTooManyGroups
	}

	seenGroup := make(map[uint8]bool, len(c.Groups))
	seenSlave := make(map[uint32]bool)
	for i := range c.Groups {
		g := &c.Groups[i]
		if seenGroup[g.GroupNumber] {
			return fmt.Errorf("%w: %d", ErrDuplicateGroupNo, g.GroupNumber)
		}
		seenGroup[g.GroupNumber] = true

		if err := g.Validate(); err != nil {
			return err
		}
		for _, d := range g.Devices {
			if seenSlave[d.SlaveID] || d.SlaveID == c.MasterID {
				return fmt.Errorf("%w: %#x", ErrDuplicateSlaveID, d.SlaveID)
			}
			seenSlave[d.SlaveID] = true
		}
	}
	return nil
}

// Validate checks a single GroupConfig against spec §4.7.
func (g *GroupConfig) Validate() error {
	if g.GroupNumber < 1 || g.GroupNumber > 64 {
		return fmt.Errorf("%w: group_no %d", cciefb.ErrInvalidConfig, g.GroupNumber)
	}
	if g.TimeoutValueMs == 0 {
		return fmt.Errorf("%w: timeout_value_ms must be nonzero", cciefb.ErrInvalidConfig)
	}
	if g.UseConstantLinkScanTime && g.TimeoutValueMs > 2000 {
		return fmt.Errorf("%w: timeout_value_ms must be <= 2000 when use_constant_link_scan_time is set", cciefb.ErrInvalidConfig)
	}
	if g.ParallelOffTimeoutCount == 0 {
		return fmt.Errorf("%w: parallel_off_timeout_count must be nonzero", cciefb.ErrInvalidConfig)
	}
	if len(g.Devices) == 0 {
		return ErrNoDevices
	}
	if len(g.Devices) > 16 {
		return fmt.Errorf("%w: group %d has more than 16 devices", cciefb.ErrInvalidConfig, g.GroupNumber)
	}

	total := 0
	for _, d := range g.Devices {
		if err := d.Validate(); err != nil {
			return err
		}
		total += d.NumOccupiedStations
	}
	if total < 1 || total > 16 {
		return fmt.Errorf("%w: group %d", ErrGroupOverfull, g.GroupNumber)
	}
	return nil
}

// Validate checks a single DeviceConfig against spec §4.7.
func (d *DeviceConfig) Validate() error {
	if !cciefb.IsValidUnicastIP(d.SlaveID) {
		return fmt.Errorf("%w: device %q slave_id", cciefb.ErrInvalidConfig, d.Name)
	}
	if d.NumOccupiedStations < 1 || d.NumOccupiedStations > 16 {
		return fmt.Errorf("%w: device %q num_occupied_stations", cciefb.ErrInvalidConfig, d.Name)
	}
	return nil
}

// Validate checks a SlaveConfig against spec §4.7.
func (c *SlaveConfig) Validate() error {
	if !cciefb.IsValidUnicastIP(c.SlaveID) {
		return fmt.Errorf("%w: slave_id", cciefb.ErrInvalidConfig)
	}
	if c.NumOccupiedStations < 1 || c.NumOccupiedStations > 16 {
		return fmt.Errorf("%w: num_occupied_stations", cciefb.ErrInvalidConfig)
	}
	return nil
}
