package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore is the blob capability tables are stored through.
//
// Names are flat: a blob name never contains a path separator. Read and
// Delete of a missing blob return an error wrapping fs.ErrNotExist.
type FileStore interface {
	Exists(name string) bool
	// Create creates an empty blob if it does not exist yet.
	Create(name string) error
	Read(name string) ([]byte, error)
	// Write replaces the whole blob content.
	Write(name string, data []byte) error
	Delete(name string) error
	// List returns all blob names, sorted.
	List() ([]string, error)
}

// DirStore stores each blob as a file in a root directory.
type DirStore struct {
	rootDir string
}

// NewDirStore initializes a DirStore, creating rootDir if needed.
func NewDirStore(rootDir string) (*DirStore, error) {
	if rootDir == "" {
		return nil, errors.New("root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &DirStore{rootDir: rootDir}, nil
}

// RootDir returns the root directory path.
func (ds *DirStore) RootDir() string {
	return ds.rootDir
}

// Exists checks if a blob file exists.
func (ds *DirStore) Exists(name string) bool {
	path, err := ds.filePath(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Create creates an empty blob file if it does not exist.
func (ds *DirStore) Create(name string) error {
	path, err := ds.filePath(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	return f.Close()
}

// Read reads a blob file.
func (ds *DirStore) Read(name string) ([]byte, error) {
	path, err := ds.filePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Write replaces a blob file.
//
// Data goes to a temporary file in the same directory which is then renamed
// over the target, so readers see either the old or the new content.
func (ds *DirStore) Write(name string, data []byte) error {
	path, err := ds.filePath(name)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(ds.rootDir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Join(fmt.Errorf("failed to write %s: %w", name, err), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s: %w", name, err), os.Remove(tmpPath))
	}
	return nil
}

// Delete deletes a blob file.
func (ds *DirStore) Delete(name string) error {
	path, err := ds.filePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// List returns the names of all regular files in the root directory,
// skipping hidden and temporary files.
func (ds *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(ds.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ds.rootDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// filePath constructs the full file path for a blob name.
func (ds *DirStore) filePath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(ds.rootDir, name), nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
