package jsonldb

import (
	"os"
	"path/filepath"
	"testing"

	dberrors "github.com/maruel/jsondb/internal/errors"
	"github.com/maruel/jsondb/internal/models"
	"github.com/maruel/jsondb/internal/storage"
)

func TestTable(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := storage.NewDirStore(tmpDir)
	if err != nil {
		t.Fatalf("NewDirStore failed: %v", err)
	}
	if err := store.Write("users.json", []byte(`[{"id":"1","name":"One"},null,{"id":"2","name":"Two"}]`)); err != nil {
		t.Fatal(err)
	}

	table, err := loadTable(store, "users", "users.json")
	if err != nil {
		t.Fatalf("loadTable failed: %v", err)
	}
	if len(table.rows) != 2 {
		t.Fatalf("expected 2 rows (null skipped), got %d", len(table.rows))
	}

	rows := append(table.rows, models.Record{"id": "3", "name": "Three"})
	if err := table.replace(rows); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	// Re-load from disk.
	table2, err := loadTable(store, "users", "users.json")
	if err != nil {
		t.Fatalf("re-loading table failed: %v", err)
	}
	if len(table2.rows) != 3 {
		t.Fatalf("re-loaded table expected 3 rows, got %d", len(table2.rows))
	}
	for i, want := range []string{"One", "Two", "Three"} {
		if got := table2.rows[i]["name"]; got != want {
			t.Errorf("row %d: name = %v, want %s", i, got, want)
		}
	}

	if err := table2.replace(nil); err != nil {
		t.Fatalf("replace(nil) failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, "users.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty table persisted as %q, want []", data)
	}
}

func TestTableLoadErrors(t *testing.T) {
	store := storage.NewMemStore()
	t.Run("missing blob", func(t *testing.T) {
		_, err := loadTable(store, "nope", "nope.json")
		if dberrors.CodeOf(err) != dberrors.ErrStorage {
			t.Errorf("expected storage error, got %v", err)
		}
	})
	t.Run("corrupt blob", func(t *testing.T) {
		if err := store.Write("bad.json", []byte(`{not json`)); err != nil {
			t.Fatal(err)
		}
		_, err := loadTable(store, "bad", "bad.json")
		if dberrors.CodeOf(err) != dberrors.ErrStorage {
			t.Errorf("expected storage error, got %v", err)
		}
	})
	t.Run("empty blob", func(t *testing.T) {
		if err := store.Create("empty.json"); err != nil {
			t.Fatal(err)
		}
		tbl, err := loadTable(store, "empty", "empty.json")
		if err != nil {
			t.Fatal(err)
		}
		if tbl.rows == nil || len(tbl.rows) != 0 {
			t.Errorf("expected empty non-nil rows, got %v", tbl.rows)
		}
	})
}

func TestTableReplaceFailure(t *testing.T) {
	store := &failingStore{FileStore: storage.NewMemStore()}
	if err := store.Write("t.json", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatal(err)
	}
	tbl, err := loadTable(store, "t", "t.json")
	if err != nil {
		t.Fatal(err)
	}
	store.failWrites = true
	err = tbl.replace(nil)
	if dberrors.CodeOf(err) != dberrors.ErrPersist {
		t.Fatalf("expected persist error, got %v", err)
	}
	if len(tbl.rows) != 1 {
		t.Errorf("rows changed after failed write: %v", tbl.rows)
	}
}
