// Package cleanup removes media families from storage and metadata.
package cleanup

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/metrics"
	"github.com/ondrasimku/media-pipeline/internal/repository"
	"github.com/ondrasimku/media-pipeline/internal/storage"
)

type state string

const (
	stateActive        state = "ACTIVE"
	stateDeletingFiles state = "DELETING_FILES"
	stateDeletingRows  state = "DELETING_ROWS"
	stateGone          state = "GONE"
)

// CascadeDeleter removes a media record together with its variants. Files go
// first and are best-effort; rows go afterwards in one transaction.
type CascadeDeleter struct {
	repo    *repository.MediaRepository
	tx      *repository.TxRunner
	storage storage.Storage
	logger  *slog.Logger
}

func NewCascadeDeleter(repo *repository.MediaRepository, tx *repository.TxRunner, store storage.Storage, logger *slog.Logger) *CascadeDeleter {
	return &CascadeDeleter{
		repo:    repo,
		tx:      tx,
		storage: store,
		logger:  logger.With("component", "cascade_deleter"),
	}
}

// Delete reports false when no record with id exists. Errors are returned only
// when the metadata could not be removed, in which case no row was touched.
func (d *CascadeDeleter) Delete(ctx context.Context, id uint) (bool, error) {
	target, err := d.repo.FindWithVariants(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.DeletesTotal.WithLabelValues(metrics.StatusMissing).Inc()
			d.logger.Info("Media not found, nothing to delete", "mediaId", id)
			return false, nil
		}
		metrics.DeletesTotal.WithLabelValues(metrics.StatusFailed).Inc()
		return false, err
	}

	log := d.logger.With("mediaId", id, "path", target.Path)
	log.Debug("Delete started", "state", stateActive, "variants", len(target.Variants))

	log.Debug("Deleting files", "state", stateDeletingFiles)
	for i := range target.Variants {
		d.removeFile(ctx, log, target.Variants[i].Path)
	}
	d.removeFile(ctx, log, target.Path)

	log.Debug("Deleting rows", "state", stateDeletingRows)
	var removed int64
	err = d.tx.RunInTx(ctx, func(repo *repository.MediaRepository) error {
		n, err := repo.DeleteFamily(ctx, id)
		removed = n
		return err
	})
	if err != nil {
		metrics.DeletesTotal.WithLabelValues(metrics.StatusFailed).Inc()
		log.Error("Failed to delete media rows", "state", stateDeletingRows, "error", err)
		return false, err
	}

	if removed == 0 {
		// a concurrent delete got there first
		metrics.DeletesTotal.WithLabelValues(metrics.StatusMissing).Inc()
		log.Info("Media rows already removed", "state", stateGone)
		return false, nil
	}

	metrics.DeletesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	log.Info("Media deleted", "state", stateGone, "rows", removed)
	return true, nil
}

func (d *CascadeDeleter) removeFile(ctx context.Context, log *slog.Logger, path string) {
	existed, err := d.storage.Delete(ctx, path)
	if err != nil {
		metrics.FileDeleteFailuresTotal.Inc()
		log.Warn("Failed to delete file", "file", path, "error", err)
		return
	}
	if !existed {
		log.Debug("File already gone", "file", path)
	}
}
