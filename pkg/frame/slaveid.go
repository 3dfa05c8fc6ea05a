package frame

import "errors"

// ErrDuplicateSlaveID is returned by AnalyzeSlaveIDList when the local
// slave_id appears more than once in the list (a protocol error per spec
// §4.1).
var ErrDuplicateSlaveID = errors.New("frame: local slave_id appears more than once in slave-ID list")

// SlaveIDAnalysis is the result of scanning a request's slave-ID list for
// the local slave_id, per spec §4.1.
type SlaveIDAnalysis struct {
	Found              bool
	MyStationNo        int // 1-based
	OccupationCount    int // 1 for MyStationNo plus the consecutive 0xFFFFFFFF entries following it
}

// AnalyzeSlaveIDList scans ids for localSlaveID. Position-in-list
// disambiguates MultiStationMarker from "no device here": a match records
// the station number, and the implied occupation is that station plus the
// run of MultiStationMarker entries immediately following it.
func AnalyzeSlaveIDList(ids []uint32, localSlaveID uint32) (SlaveIDAnalysis, error) {
	var a SlaveIDAnalysis
	found := -1
	for i, id := range ids {
		if id == localSlaveID {
			if found >= 0 {
				return a, ErrDuplicateSlaveID
			}
			found = i
		}
	}
	if found < 0 {
		return a, nil
	}
	a.Found = true
	a.MyStationNo = found + 1
	count := 1
	for i := found + 1; i < len(ids) && ids[i] == MultiStationMarker; i++ {
		count++
	}
	a.OccupationCount = count
	return a, nil
}

// BuildSlaveIDList constructs the slave-ID list for a request frame: for a
// device occupying k stations starting at station s (1-based), position
// s-1 holds ip and positions s..s+k-2 hold MultiStationMarker.
func BuildSlaveIDList(totalOccupied int, devices []SlaveIDListEntry) []uint32 {
	ids := make([]uint32, totalOccupied)
	for i := range ids {
		ids[i] = MultiStationMarker
	}
	for _, d := range devices {
		start := d.StartStation - 1
		if start < 0 || start >= totalOccupied {
			continue
		}
		ids[start] = d.IP
		// positions start+1..start+k-1 stay MultiStationMarker
	}
	return ids
}

// SlaveIDListEntry describes one device's placement for BuildSlaveIDList.
type SlaveIDListEntry struct {
	IP           uint32
	StartStation int // 1-based
	NumStations  int
}
