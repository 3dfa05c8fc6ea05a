package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMaster() *MasterConfig {
	return &MasterConfig{
		MasterID:          0x01020304,
		ProtocolVersion:   2,
		ArbitrationTimeMs: 2500,
		Groups: []GroupConfig{
			{
				GroupNumber:             1,
				TimeoutValueMs:          500,
				ParallelOffTimeoutCount: 3,
				Devices: []DeviceConfig{
					{Name: "valve1", SlaveID: 0x01020306, NumOccupiedStations: 3},
				},
			},
		},
	}
}

func TestMasterConfigValidate_OK(t *testing.T) {
	require.NoError(t, validMaster().Validate())
}

func TestMasterConfigValidate_BadMasterID(t *testing.T) {
	cfg := validMaster()
	cfg.MasterID = 0
	assert.Error(t, cfg.Validate())
}

func TestMasterConfigValidate_NoGroups(t *testing.T) {
	cfg := validMaster()
	cfg.Groups = nil
	assert.ErrorIs(t, cfg.Validate(), ErrNoGroups)
}

func TestMasterConfigValidate_DuplicateGroupNo(t *testing.T) {
	cfg := validMaster()
	cfg.Groups = append(cfg.Groups, cfg.Groups[0])
	assert.ErrorIs(t, cfg.Validate(), ErrDuplicateGroupNo)
}

func TestMasterConfigValidate_ZeroTimeout(t *testing.T) {
	cfg := validMaster()
	cfg.Groups[0].TimeoutValueMs = 0
	assert.Error(t, cfg.Validate())
}

func TestMasterConfigValidate_ConstantLinkScanTimeTooLarge(t *testing.T) {
	cfg := validMaster()
	cfg.Groups[0].UseConstantLinkScanTime = true
	cfg.Groups[0].TimeoutValueMs = 2001
	assert.Error(t, cfg.Validate())
}

func TestMasterConfigValidate_GroupOverfull(t *testing.T) {
	cfg := validMaster()
	cfg.Groups[0].Devices = append(cfg.Groups[0].Devices,
		DeviceConfig{Name: "valve2", SlaveID: 0x01020307, NumOccupiedStations: 14})
	assert.ErrorIs(t, cfg.Validate(), ErrGroupOverfull)
}

func TestMasterConfigValidate_DuplicateSlaveID(t *testing.T) {
	cfg := validMaster()
	cfg.Groups[0].Devices = append(cfg.Groups[0].Devices,
		DeviceConfig{Name: "valve2", SlaveID: 0x01020306, NumOccupiedStations: 1})
	assert.ErrorIs(t, cfg.Validate(), ErrDuplicateSlaveID)
}

func TestSlaveConfigValidate(t *testing.T) {
	cfg := &SlaveConfig{SlaveID: 0x01020306, NumOccupiedStations: 2}
	assert.NoError(t, cfg.Validate())

	cfg.NumOccupiedStations = 17
	assert.Error(t, cfg.Validate())
}
