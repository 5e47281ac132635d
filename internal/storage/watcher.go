// Watches a DirStore root for tables created or removed by other processes.

package storage

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchFunc is called with the table whose blob appeared or disappeared.
type WatchFunc func(table string, op fsnotify.Op)

// Watch starts watching ds's root directory and calls fn for every table
// blob that is created, removed or renamed. It returns once the watch is
// installed; events are delivered from a goroutine until ctx is done.
func (ds *DirStore) Watch(ctx context.Context, fn WatchFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(ds.rootDir); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				table, ok := TableName(filepath.Base(event.Name))
				if !ok {
					continue
				}
				fn(table, event.Op)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching tables", "dir", ds.rootDir, "err", err)
			}
		}
	}()
	return nil
}
