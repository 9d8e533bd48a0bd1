package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/metrics"
)

// Manager is the upload entry point used by transports.
type Manager struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewManager(dispatcher *Dispatcher, logger *slog.Logger) *Manager {
	return &Manager{
		dispatcher: dispatcher,
		logger:     logger.With("component", "upload_manager"),
	}
}

func (m *Manager) Upload(ctx context.Context, file File) (*domain.UploadResult, error) {
	if file.Reader == nil {
		return nil, fmt.Errorf("%w: upload has no content", domain.ErrStorageWrite)
	}

	strategy := m.dispatcher.Dispatch(file.MimeType)

	result, err := strategy.Upload(ctx, file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(strategy.Name(), metrics.StatusFailed).Inc()
		m.logger.Error("Upload failed",
			"strategy", strategy.Name(),
			"mimeType", file.MimeType,
			"filename", file.Name,
			"error", err,
		)
		return nil, err
	}

	metrics.UploadsTotal.WithLabelValues(strategy.Name(), metrics.StatusSuccess).Inc()
	return result, nil
}
