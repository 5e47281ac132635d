package jsonldb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/fsnotify/fsnotify"
	dberrors "github.com/maruel/jsondb/internal/errors"
	"github.com/maruel/jsondb/internal/models"
	"github.com/maruel/jsondb/internal/storage"
	"github.com/maruel/jsondb/internal/utils"
)

// Options configures a DB.
type Options struct {
	// CaseSensitive makes text equality and like/in tests case-sensitive.
	CaseSensitive bool
	// Logger receives operation traces at debug level. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DB is a set of tables stored in one FileStore.
type DB struct {
	store    storage.FileStore
	registry *storage.Registry
	opts     Options
	logger   *slog.Logger

	newID   func() (string, error)
	shuffle func([]models.Record)
}

// Open binds a DB to store and builds the table registry.
func Open(store storage.FileStore, opts *Options) (*DB, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	db := &DB{
		store:    store,
		registry: storage.NewRegistry(),
		newID:    utils.GenerateID,
		shuffle: func(rows []models.Record) {
			rand.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		},
	}
	if opts != nil {
		db.opts = *opts
	}
	db.logger = db.opts.Logger
	if db.logger == nil {
		db.logger = slog.Default()
	}
	if err := db.Refresh(); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenDir opens a DB over a directory, creating it if needed.
func OpenDir(dir string, opts *Options) (*DB, error) {
	store, err := storage.NewDirStore(dir)
	if err != nil {
		return nil, err
	}
	return Open(store, opts)
}

// Close releases the store if it holds resources (e.g. a bbolt file).
func (db *DB) Close() error {
	if c, ok := db.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Store returns the underlying FileStore.
func (db *DB) Store() storage.FileStore {
	return db.store
}

// Refresh rebuilds the table registry from the store listing.
//
// It only needs to be called when tables may have been created or removed
// outside this DB; Table and Destroy keep the registry current themselves.
func (db *DB) Refresh() error {
	if err := db.registry.Refresh(db.store); err != nil {
		return dberrors.StorageError("failed to list tables", err)
	}
	return nil
}

// Tables returns the names of all known tables, sorted.
func (db *DB) Tables() []string {
	return db.registry.Tables()
}

// Table returns a new Session bound to the table name.
func (db *DB) Table(name string) (*Session, error) {
	s := &Session{db: db}
	return s.Table(name)
}

// Watch keeps the registry current while ctx is alive by watching the store
// for table blobs created or removed by other processes. onChange, if not
// nil, is called after each refresh. Only directory stores can be watched.
func (db *DB) Watch(ctx context.Context, onChange func(table string)) error {
	ws, ok := db.store.(interface {
		Watch(context.Context, storage.WatchFunc) error
	})
	if !ok {
		return fmt.Errorf("store %T does not support watching", db.store)
	}
	return ws.Watch(ctx, func(table string, op fsnotify.Op) {
		db.logger.DebugContext(ctx, "Table changed", "table", table, "op", op.String())
		if err := db.Refresh(); err != nil {
			db.logger.WarnContext(ctx, "Failed to refresh tables", "err", err)
			return
		}
		if onChange != nil {
			onChange(table)
		}
	})
}

// ensureTable creates the blob for table when missing and registers it.
func (db *DB) ensureTable(table string) error {
	blob := storage.BlobName(table)
	if db.store.Exists(blob) {
		if _, ok := db.registry.Lookup(table); !ok {
			return db.Refresh()
		}
		return nil
	}
	db.logger.Debug("Creating table", "table", table)
	if err := db.store.Create(blob); err != nil {
		return dberrors.PersistError(table, err)
	}
	data, err := encodeRows(nil)
	if err != nil {
		return dberrors.PersistError(table, err)
	}
	if err := db.store.Write(blob, data); err != nil {
		return dberrors.PersistError(table, err)
	}
	return db.Refresh()
}
