package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"gorm.io/gorm"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// FileMeta carries optional size and dimension columns.
type FileMeta struct {
	Size   int64
	Width  int
	Height int
}

func (m *FileMeta) apply(record *domain.MediaRecord) {
	if m == nil {
		return
	}
	size := m.Size
	record.Size = &size
	if m.Width > 0 && m.Height > 0 {
		width, height := m.Width, m.Height
		resolution := domain.Dimensions(width, height)
		record.Width = &width
		record.Height = &height
		record.Resolution = &resolution
	}
}

func (r *MediaRepository) CreateOriginal(ctx context.Context, path, mime string, meta *FileMeta) (*domain.MediaRecord, error) {
	record := &domain.MediaRecord{
		Path:     path,
		MimeType: mime,
		Variant:  domain.VariantOriginal,
	}
	meta.apply(record)
	return record, r.create(ctx, record)
}

// CreateVariant stores a derived record. The parent must exist and must
// itself be an original.
func (r *MediaRepository) CreateVariant(ctx context.Context, path, mime string, label domain.VariantLabel, parentID uint, meta *FileMeta) (*domain.MediaRecord, error) {
	var parent domain.MediaRecord
	if err := r.db.WithContext(ctx).First(&parent, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: parent %d", domain.ErrNotFound, parentID)
		}
		return nil, fmt.Errorf("%w: load parent %d: %w", domain.ErrMetadataWrite, parentID, err)
	}
	if parent.ParentID != nil {
		return nil, fmt.Errorf("%w: parent %d is itself a variant", domain.ErrMetadataWrite, parentID)
	}

	record := &domain.MediaRecord{
		Path:     path,
		MimeType: mime,
		Variant:  label,
		ParentID: &parentID,
	}
	meta.apply(record)
	return record, r.create(ctx, record)
}

func (r *MediaRepository) create(ctx context.Context, record *domain.MediaRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMetadataWrite, err)
	}
	if err := r.db.WithContext(ctx).Omit("Variants").Create(record).Error; err != nil {
		return fmt.Errorf("%w: insert %s: %w", domain.ErrMetadataWrite, record.Path, err)
	}
	return nil
}

// FindWithVariants returns the record with its direct variants loaded, or
// domain.ErrNotFound.
func (r *MediaRepository) FindWithVariants(ctx context.Context, id uint) (*domain.MediaRecord, error) {
	var record domain.MediaRecord
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("find media %d: %w", id, err)
	}
	return &record, nil
}

func (r *MediaRepository) FindByIDs(ctx context.Context, ids []uint) ([]domain.MediaRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var records []domain.MediaRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find media by ids: %w", err)
	}
	return records, nil
}

// FindFamilies returns every record whose id or parent id is one of rootIDs.
func (r *MediaRepository) FindFamilies(ctx context.Context, rootIDs []uint) ([]domain.MediaRecord, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}
	var records []domain.MediaRecord
	err := r.db.WithContext(ctx).
		Where("id IN ?", rootIDs).
		Or("parent_id IN ?", rootIDs).
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("find media families: %w", err)
	}
	return records, nil
}

func (r *MediaRepository) ListByOwner(ctx context.Context, owner domain.Owner) ([]domain.MediaRecord, error) {
	var records []domain.MediaRecord
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		Order("is_main DESC").
		Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list media for %s: %w", owner, err)
	}
	return records, nil
}

// UpdateAttachment sets the owner reference and main flag of one record.
func (r *MediaRepository) UpdateAttachment(ctx context.Context, id uint, owner domain.Owner, isMain bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.MediaRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"owner_type": owner.Type,
			"owner_id":   owner.ID,
			"is_main":    isMain,
		})
	if res.Error != nil {
		return fmt.Errorf("%w: attach media %d to %s: %w", domain.ErrMetadataWrite, id, owner, res.Error)
	}
	return nil
}

// DeleteFamily removes the variants of id and then id itself. It returns the
// number of rows removed.
func (r *MediaRepository) DeleteFamily(ctx context.Context, id uint) (int64, error) {
	variants := r.db.WithContext(ctx).Where("parent_id = ?", id).Delete(&domain.MediaRecord{})
	if variants.Error != nil {
		return 0, fmt.Errorf("%w: delete variants of %d: %w", domain.ErrMetadataWrite, id, variants.Error)
	}

	target := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.MediaRecord{})
	if target.Error != nil {
		return 0, fmt.Errorf("%w: delete media %d: %w", domain.ErrMetadataWrite, id, target.Error)
	}

	return variants.RowsAffected + target.RowsAffected, nil
}
