package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tagweave/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

type watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
}

// Watch keeps the index in step with the vault until ctx is cancelled,
// calling cb after each index change. Directories created at runtime are
// watched too. fsnotify reports a rename on the old path only, so renames
// schedule a debounced reconcile that picks up the new path.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, vaultRoot); err != nil {
		return err
	}

	w := &watcher{db: db, store: store, root: vaultRoot, logger: logger, cb: cb}
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				if reconcileTimer == nil {
					reconcileTimer = time.NewTimer(reconcileDelay)
					reconcileCh = reconcileTimer.C
				} else {
					reconcileTimer.Reset(reconcileDelay)
				}
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle applies one fsnotify event and reports whether a reconcile is
// needed.
func (w *watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			w.indexDir(ev.Name)
			return false
		}
	}

	if !storage.IsEntityFile(ev.Name) {
		return false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return false
	}

	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		kind := EventUpdated
		if ev.Op.Has(fsnotify.Create) {
			kind = EventCreated
		}
		w.index(rel, kind)

	case ev.Op.Has(fsnotify.Remove):
		w.remove(rel)

	case ev.Op.Has(fsnotify.Rename):
		w.remove(rel)
		return true
	}
	return false
}

func (w *watcher) index(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	cs, _ := w.db.GetChecksum(rel)
	if err := indexFile(w.db, rel, data, w.logger); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if cs != "" && kind == EventCreated {
		kind = EventUpdated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

func (w *watcher) remove(rel string) {
	if err := w.db.DeleteByPath(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(EventDeleted, rel)
}

func (w *watcher) notify(kind, rel string) {
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// reconcile drops index rows whose file is gone and indexes files whose
// checksum differs from the stored one.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if prev, ok := checksums[p]; ok && prev == cs {
			continue
		}
		w.index(p, EventCreated)
	}
}

// indexDir indexes entity files already present in a new directory.
func (w *watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsEntityFile(p) {
			return nil
		}
		if rel, err := filepath.Rel(w.root, p); err == nil {
			w.index(rel, EventCreated)
		}
		return nil
	})
}

// addDirsRecursive adds root and its non-hidden subdirectories to fw.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
