package index

import (
	"log/slog"

	"github.com/starford/tagweave/internal/checksum"
	"github.com/starford/tagweave/internal/models"
	"github.com/starford/tagweave/internal/parser"
	"github.com/starford/tagweave/internal/storage"
)

// SyncResult counts what a Sync changed.
type SyncResult struct {
	Indexed int
	Removed int
	Failed  int
}

// Changed reports whether the sync touched the index.
func (r SyncResult) Changed() bool { return r.Indexed > 0 || r.Removed > 0 }

// Sync walks the vault and brings the index up to date: new or changed
// files are parsed and upserted, files gone from disk are removed.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncResult, error) {
	var res SyncResult

	metas, err := store.List("")
	if err != nil {
		return res, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return res, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			res.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, logger); err != nil {
			res.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteByPath(p); err != nil {
			res.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		res.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: done",
		slog.Int("files", len(metas)),
		slog.Int("indexed", res.Indexed),
		slog.Int("removed", res.Removed),
		slog.Int("failed", res.Failed))
	return res, nil
}

// indexFile parses data and upserts the entity. Entities that fail
// validation are still stored; the graph builder skips them.
func indexFile(db *DB, path string, data []byte, logger *slog.Logger) error {
	res := parser.Parse(path, data)
	if err := res.Entity.Validate(); err != nil {
		logger.Warn("index: entity will be skipped by builds",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	meta := models.EntityMetadata{Path: path, Checksum: checksum.Sum(data)}
	return db.UpsertEntity(meta, res.Entity)
}
