package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMasterConfigINIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.ini")

	cfg := validMaster()
	require.NoError(t, SaveMasterConfigINI(cfg, path))

	loaded, err := LoadMasterConfigINI(path)
	require.NoError(t, err)
	require.Equal(t, cfg.MasterID, loaded.MasterID)
	require.Equal(t, cfg.ArbitrationTimeMs, loaded.ArbitrationTimeMs)
	require.Len(t, loaded.Groups, 1)
	require.Equal(t, cfg.Groups[0].GroupNumber, loaded.Groups[0].GroupNumber)
	require.Equal(t, cfg.Groups[0].TimeoutValueMs, loaded.Groups[0].TimeoutValueMs)
	require.Len(t, loaded.Groups[0].Devices, 1)
	require.Equal(t, cfg.Groups[0].Devices[0].SlaveID, loaded.Groups[0].Devices[0].SlaveID)
	require.NoError(t, loaded.Validate())
}

func TestSlaveConfigINIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slave.ini")

	cfg := &SlaveConfig{
		SlaveID:             0x01020306,
		NumOccupiedStations: 2,
		VendorCode:          0x3456,
		ModelCode:           0x789ABCDE,
		EquipmentVer:        0xF012,
	}
	require.NoError(t, SaveSlaveConfigINI(cfg, path))

	loaded, err := LoadSlaveConfigINI(path)
	require.NoError(t, err)
	require.Equal(t, *cfg, *loaded)
}
