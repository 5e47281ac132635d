// Single-file blob storage backed by bbolt.

package storage

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var blobBucket = []byte("tables")

// BoltStore keeps every blob as a key of one bucket in a bbolt file.
//
// It is an alternative to DirStore when a single file is preferable to a
// directory of files. Each Write is one bbolt transaction.
type BoltStore struct {
	bdb *bbolt.DB
}

// OpenBoltStore opens (or creates) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bdb, err := bbolt.Open(path, 0o644, &bopt)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", errJoinClose(err, bdb))
	}
	return &BoltStore{bdb: bdb}, nil
}

// Close closes the underlying bbolt file.
func (bs *BoltStore) Close() error {
	return bs.bdb.Close()
}

// Exists checks if a blob key exists.
func (bs *BoltStore) Exists(name string) bool {
	found := false
	_ = bs.bdb.View(func(tx *bbolt.Tx) error {
		found = hasKey(tx.Bucket(blobBucket), []byte(name))
		return nil
	})
	return found
}

// Create stores an empty value under name if the key is absent.
func (bs *BoltStore) Create(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return bs.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobBucket)
		if hasKey(b, []byte(name)) {
			return nil
		}
		return b.Put([]byte(name), []byte{})
	})
}

// Read returns a copy of the value stored under name.
func (bs *BoltStore) Read(name string) ([]byte, error) {
	var data []byte
	err := bs.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobBucket)
		if !hasKey(b, []byte(name)) {
			return fmt.Errorf("failed to read %s: %w", name, fs.ErrNotExist)
		}
		// Values are only valid for the life of the transaction.
		data = bytes.Clone(b.Get([]byte(name)))
		if data == nil {
			data = []byte{}
		}
		return nil
	})
	return data, err
}

// Write replaces the value stored under name.
func (bs *BoltStore) Write(name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := bs.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobBucket).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Delete removes the key name.
func (bs *BoltStore) Delete(name string) error {
	return bs.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobBucket)
		if !hasKey(b, []byte(name)) {
			return fmt.Errorf("failed to delete %s: %w", name, fs.ErrNotExist)
		}
		return b.Delete([]byte(name))
	})
}

// List returns all keys in byte order.
func (bs *BoltStore) List() ([]string, error) {
	var names []string
	err := bs.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(blobBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	return names, nil
}

// hasKey uses a cursor so that keys holding an empty value are found too.
func hasKey(b *bbolt.Bucket, key []byte) bool {
	k, _ := b.Cursor().Seek(key)
	return k != nil && bytes.Equal(k, key)
}

func errJoinClose(err error, bdb *bbolt.DB) error {
	if cerr := bdb.Close(); cerr != nil {
		return fmt.Errorf("%w (close: %v)", err, cerr)
	}
	return err
}
