// Package storage implements the persisted key-value file format of
// spec §6: a fixed 8-byte header (4-byte magic, 1-byte version, 3-byte
// reserved) followed by one or two caller-supplied payloads, with a
// save-if-modified compare-and-write to avoid unnecessary flash wear.
package storage

import (
	"bytes"
	"os"

	"github.com/cciefb-go/cciefb"
)

// magic identifies a file written by this package; version is bumped only
// if the header layout itself changes.
var magic = [4]byte{'C', 'F', 'B', '1'}

const (
	currentVersion = 1
	headerSize     = 4 + 1 + 3
)

// FileStore is the production cciefb.Storage backed by the local
// filesystem. There is no teacher analogue for this binary layout; it is
// built directly on os/encoding-style slicing, matching the teacher's own
// direct-file-io style elsewhere (od.ExportEDS writes straight to os files).
type FileStore struct{}

// NewFileStore constructs a FileStore. It carries no state: every call
// takes the target path explicitly.
func NewFileStore() *FileStore { return &FileStore{} }

var _ cciefb.Storage = (*FileStore)(nil)

func encode(obj1, obj2 []byte) []byte {
	buf := make([]byte, headerSize+len(obj1)+len(obj2))
	copy(buf[0:4], magic[:])
	buf[4] = currentVersion
	// buf[5:8] stays zero (reserved)
	copy(buf[headerSize:], obj1)
	copy(buf[headerSize+len(obj1):], obj2)
	return buf
}

// SaveIfModified implements cciefb.Storage.
func (f *FileStore) SaveIfModified(path string, obj1, obj2 []byte) (cciefb.SaveResult, error) {
	want := encode(obj1, obj2)

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if bytes.Equal(existing, want) {
			return cciefb.SaveNoChange, nil
		}
		if err := os.WriteFile(path, want, 0o644); err != nil {
			return 0, err
		}
		return cciefb.SaveUpdated, nil
	case os.IsNotExist(err):
		if err := os.WriteFile(path, want, 0o644); err != nil {
			return 0, err
		}
		return cciefb.SaveCreated, nil
	default:
		return 0, err
	}
}

// Load implements cciefb.Storage. It leaves the returned slices nil on any
// validation failure (bad magic/version/short file), per spec §6.
func (f *FileStore) Load(path string, obj1Len, obj2Len int) (obj1, obj2 []byte, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	want := headerSize + obj1Len + obj2Len
	if len(raw) < want {
		return nil, nil, cciefb.ErrFileTooShort
	}
	if !bytes.Equal(raw[0:4], magic[:]) {
		return nil, nil, cciefb.ErrBadMagic
	}
	if raw[4] != currentVersion {
		return nil, nil, cciefb.ErrBadFileVersion
	}
	obj1 = append([]byte(nil), raw[headerSize:headerSize+obj1Len]...)
	if obj2Len > 0 {
		obj2 = append([]byte(nil), raw[headerSize+obj1Len:headerSize+obj1Len+obj2Len]...)
	}
	return obj1, obj2, nil
}

// Clear implements cciefb.Storage.
func (f *FileStore) Clear(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
