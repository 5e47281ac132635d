package storage

import (
	"bytes"
	"fmt"
	"io/fs"
	"slices"
	"sync"
)

// MemStore is a transient in-memory FileStore intended for tests and
// throwaway tables.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Exists checks if a blob exists.
func (m *MemStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[name]
	return ok
}

// Create creates an empty blob if it does not exist.
func (m *MemStore) Create(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		m.blobs[name] = []byte{}
	}
	return nil
}

// Read returns a copy of a blob.
func (m *MemStore) Read(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("failed to read %s: %w", name, fs.ErrNotExist)
	}
	return bytes.Clone(data), nil
}

// Write replaces a blob with a copy of data.
func (m *MemStore) Write(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = bytes.Clone(data)
	return nil
}

// Delete removes a blob.
func (m *MemStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return fmt.Errorf("failed to delete %s: %w", name, fs.ErrNotExist)
	}
	delete(m.blobs, name)
	return nil
}

// List returns all blob names, sorted.
func (m *MemStore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.blobs))
	for name := range m.blobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
