package storage

import (
	"slices"
	"strings"
	"sync"
)

// BlobExt is the suffix of every table blob.
const BlobExt = ".json"

// BlobName returns the blob holding table.
func BlobName(table string) string {
	return table + BlobExt
}

// TableName returns the table stored in blob, or false if blob is not a
// table blob.
func TableName(blob string) (string, bool) {
	table, ok := strings.CutSuffix(blob, BlobExt)
	if !ok || table == "" {
		return "", false
	}
	return table, true
}

// Registry maps table names to their blob names.
//
// It is rebuilt from a store listing by Refresh and pruned by Remove in
// between. It is safe for concurrent use so a watch callback can refresh it
// from its own goroutine.
type Registry struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewRegistry initializes an empty registry.
func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]string)}
}

// Refresh rebuilds the registry from the blobs listed by store.
func (r *Registry) Refresh(store FileStore) error {
	names, err := store.List()
	if err != nil {
		return err
	}
	blobs := make(map[string]string, len(names))
	for _, name := range names {
		if table, ok := TableName(name); ok {
			blobs[table] = name
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs = blobs
	return nil
}

// Lookup returns the blob backing table.
func (r *Registry) Lookup(table string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.blobs[table]
	return blob, ok
}

// Remove unregisters table.
func (r *Registry) Remove(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, table)
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tables := make([]string, 0, len(r.blobs))
	for table := range r.blobs {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	return tables
}
