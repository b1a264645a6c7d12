package index

import (
	"log/slog"
	"time"

	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/checksum"
	"github.com/Leonado-NIKITA/DAGflowtoCode/internal/storage"
)

// Sync walks the workspace and brings the index up to date:
//   - new/changed documents are summarised and upserted
//   - documents removed from disk are deleted from the index
//
// Documents that fail to decode are logged and skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteFlow(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile summarises data and upserts it. A zero updatedAt means now.
func IndexFile(db FlowIndex, path string, data []byte, updatedAt time.Time) error {
	s, err := Summarize(data)
	if err != nil {
		return err
	}
	return db.UpsertFlow(FlowRow{
		Path:      path,
		Title:     s.Title,
		Checksum:  checksum.Sum(data),
		Stats:     s.Stats,
		UpdatedAt: updatedAt,
	}, s.Usage)
}
