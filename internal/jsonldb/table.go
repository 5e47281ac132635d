package jsonldb

import (
	"bytes"
	"encoding/json"
	"fmt"

	dberrors "github.com/maruel/jsondb/internal/errors"
	"github.com/maruel/jsondb/internal/models"
	"github.com/maruel/jsondb/internal/storage"
)

// table handles storage and in-memory caching for a single table stored as
// one JSON array.
//
// rows is the full RecordSet. Filtered views hold the same Record instances,
// so changes made through a view are persisted by replace.
type table struct {
	name  string
	blob  string
	store storage.FileStore

	rows []models.Record
}

// loadTable reads and decodes the blob backing a table.
func loadTable(store storage.FileStore, name, blob string) (*table, error) {
	t := &table{name: name, blob: blob, store: store}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *table) load() error {
	data, err := t.store.Read(t.blob)
	if err != nil {
		return dberrors.StorageError(fmt.Sprintf("failed to read table %q", t.name), err)
	}
	rows, err := decodeRows(data)
	if err != nil {
		return dberrors.StorageError(fmt.Sprintf("failed to decode table %q", t.name), err)
	}
	t.rows = rows
	return nil
}

// replace persists rows as the table's full content. The in-memory rows are
// only swapped once the write succeeded.
func (t *table) replace(rows []models.Record) error {
	data, err := encodeRows(rows)
	if err != nil {
		return dberrors.PersistError(t.name, err)
	}
	if err := t.store.Write(t.blob, data); err != nil {
		return dberrors.PersistError(t.name, err)
	}
	t.rows = rows
	return nil
}

// decodeRows parses a JSON array of objects. An empty blob is an empty table
// and null entries are skipped.
func decodeRows(data []byte) ([]models.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Record{}, nil
	}
	var raw []models.Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	rows := make([]models.Record, 0, len(raw))
	for _, r := range raw {
		if r != nil {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// encodeRows serializes rows as a JSON array; nil encodes as [].
func encodeRows(rows []models.Record) ([]byte, error) {
	if rows == nil {
		rows = []models.Record{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rows: %w", err)
	}
	return data, nil
}
