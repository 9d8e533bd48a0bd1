package upload

import (
	"context"
	"log/slog"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/repository"
	"github.com/ondrasimku/media-pipeline/internal/storage"
)

const (
	DefaultThumbnailHeight = 200
	DefaultThumbnailPrefix = "thumbnail_"
)

type ImageOptions struct {
	ThumbnailHeight int
	ThumbnailPrefix string
}

// ImageStrategy stores the original, derives a thumbnail next to it and
// records both rows in one transaction.
type ImageStrategy struct {
	allocator storage.PathAllocator
	store     storage.Storage
	generator VariantGenerator
	tx        *repository.TxRunner
	opts      ImageOptions
	logger    *slog.Logger
}

func NewImageStrategy(
	allocator storage.PathAllocator,
	store storage.Storage,
	generator VariantGenerator,
	tx *repository.TxRunner,
	opts ImageOptions,
	logger *slog.Logger,
) *ImageStrategy {
	if opts.ThumbnailHeight <= 0 {
		opts.ThumbnailHeight = DefaultThumbnailHeight
	}
	if opts.ThumbnailPrefix == "" {
		opts.ThumbnailPrefix = DefaultThumbnailPrefix
	}
	return &ImageStrategy{
		allocator: allocator,
		store:     store,
		generator: generator,
		tx:        tx,
		opts:      opts,
		logger:    logger.With("component", "image_strategy"),
	}
}

func (s *ImageStrategy) Name() string { return "image" }

func (s *ImageStrategy) Upload(ctx context.Context, file File) (*domain.UploadResult, error) {
	folder, err := s.allocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Store(ctx, file.Reader, folder, file.Name)
	if err != nil {
		return nil, err
	}

	thumb, err := s.generator.DeriveResizedImage(ctx, stored.Path, s.opts.ThumbnailHeight, s.opts.ThumbnailPrefix)
	if err != nil {
		reportOrphans(s.logger, "derive_thumbnail", err, stored.Path)
		return nil, err
	}

	var original, thumbnail *domain.MediaRecord
	err = s.tx.RunInTx(ctx, func(repo *repository.MediaRepository) error {
		var err error
		original, err = repo.CreateOriginal(ctx, stored.Path, file.MimeType, &repository.FileMeta{
			Size:   stored.Size,
			Width:  thumb.SourceWidth,
			Height: thumb.SourceHeight,
		})
		if err != nil {
			return err
		}
		thumbnail, err = repo.CreateVariant(ctx, thumb.Path, file.MimeType, domain.VariantThumbnail, original.ID, &repository.FileMeta{
			Size:   thumb.Size,
			Width:  thumb.Width,
			Height: thumb.Height,
		})
		return err
	})
	if err != nil {
		reportOrphans(s.logger, "persist_metadata", err, stored.Path, thumb.Path)
		return nil, err
	}

	s.logger.Info("Image uploaded",
		"id", original.ID,
		"path", original.Path,
		"thumbnail_id", thumbnail.ID,
		"size", stored.Size,
	)

	return &domain.UploadResult{
		ID:           original.ID,
		Path:         original.Path,
		MimeType:     original.MimeType,
		Variant:      original.Variant,
		OriginalName: file.Name,
		Variants: []domain.VariantDescriptor{
			{
				ID:           thumbnail.ID,
				Variant:      thumbnail.Variant,
				Path:         thumbnail.Path,
				Size:         thumbnail.Size,
				Width:        thumbnail.Width,
				Height:       thumbnail.Height,
				Resolution:   thumbnail.Resolution,
				OriginalName: file.Name,
			},
		},
	}, nil
}
