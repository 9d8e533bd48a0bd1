package upload

import (
	"context"
	"log/slog"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/repository"
	"github.com/ondrasimku/media-pipeline/internal/storage"
)

// DocumentStrategy stores the file as is and writes a single original row.
type DocumentStrategy struct {
	allocator storage.PathAllocator
	store     storage.Storage
	repo      *repository.MediaRepository
	logger    *slog.Logger
}

func NewDocumentStrategy(
	allocator storage.PathAllocator,
	store storage.Storage,
	repo *repository.MediaRepository,
	logger *slog.Logger,
) *DocumentStrategy {
	return &DocumentStrategy{
		allocator: allocator,
		store:     store,
		repo:      repo,
		logger:    logger.With("component", "document_strategy"),
	}
}

func (s *DocumentStrategy) Name() string { return "document" }

func (s *DocumentStrategy) Upload(ctx context.Context, file File) (*domain.UploadResult, error) {
	folder, err := s.allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Store(ctx, file.Reader, folder, file.Name)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.CreateOriginal(ctx, stored.Path, file.MimeType, &repository.FileMeta{Size: stored.Size})
	if err != nil {
		reportOrphans(s.logger, "persist_metadata", err, stored.Path)
		return nil, err
	}

	s.logger.Info("Document uploaded", "id", record.ID, "path", record.Path, "size", stored.Size)

	return &domain.UploadResult{
		ID:           record.ID,
		Path:         record.Path,
		MimeType:     record.MimeType,
		Variant:      record.Variant,
		OriginalName: file.Name,
		Variants:     []domain.VariantDescriptor{},
	}, nil
}
