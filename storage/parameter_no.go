package storage

import (
	"encoding/binary"

	"github.com/cciefb-go/cciefb"
)

// LoadParameterNo reads the 2-byte parameter_no payload previously written
// by SaveParameterNo. Per spec §4.2 ("failure to load defaults to 0"), a
// missing or invalid file is not an error to the caller: it returns 0 and
// lets the caller proceed as a fresh start.
func LoadParameterNo(store cciefb.Storage, path string) uint16 {
	obj1, _, err := store.Load(path, 2, 0)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint16(obj1)
}

// SaveParameterNo writes parameterNo as the sole payload, save-if-modified.
func SaveParameterNo(store cciefb.Storage, path string, parameterNo uint16) (cciefb.SaveResult, error) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, parameterNo)
	return store.SaveIfModified(path, buf, nil)
}
