package loopback

import (
	"bytes"
	"sync"

	"github.com/cciefb-go/cciefb"
)

// memStorage is an in-memory cciefb.Storage, the same save-if-modified
// contract as storage.FileStore but backed by a map instead of the
// filesystem — test infrastructure, not the production format (spec §9:
// "the mock layer in tests ... is test infrastructure, not core design").
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

var _ cciefb.Storage = (*memStorage)(nil)

func (m *memStorage) SaveIfModified(path string, obj1, obj2 []byte) (cciefb.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := append(append([]byte(nil), obj1...), obj2...)
	existing, ok := m.files[path]
	if !ok {
		m.files[path] = want
		return cciefb.SaveCreated, nil
	}
	if bytes.Equal(existing, want) {
		return cciefb.SaveNoChange, nil
	}
	m.files[path] = want
	return cciefb.SaveUpdated, nil
}

func (m *memStorage) Load(path string, obj1Len, obj2Len int) (obj1, obj2 []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.files[path]
	if !ok || len(raw) < obj1Len+obj2Len {
		return nil, nil, cciefb.ErrFileTooShort
	}
	obj1 = append([]byte(nil), raw[:obj1Len]...)
	if obj2Len > 0 {
		obj2 = append([]byte(nil), raw[obj1Len:obj1Len+obj2Len]...)
	}
	return obj1, obj2, nil
}

func (m *memStorage) Clear(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}
