package domain

import (
	"fmt"
	"strings"
	"time"
)

type VariantLabel string

const (
	VariantOriginal  VariantLabel = "original"
	VariantThumbnail VariantLabel = "thumbnail"
)

// MediaRecord is one stored file. Variants point at their original through
// ParentID and are never nested more than one level deep.
type MediaRecord struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	Path       string       `gorm:"column:path;size:512;not null;uniqueIndex" json:"path"`
	MimeType   string       `gorm:"column:mime_type;size:128;not null" json:"mime_type"`
	Variant    VariantLabel `gorm:"column:variant_label;size:32;not null" json:"variant"`
	IsMain     bool         `gorm:"column:is_main;not null;default:false" json:"is_main"`
	ParentID   *uint        `gorm:"column:parent_id;index" json:"parent_id,omitempty"`
	OwnerType  *string      `gorm:"column:owner_type;size:64;index:idx_media_owner" json:"owner_type,omitempty"`
	OwnerID    *string      `gorm:"column:owner_id;size:64;index:idx_media_owner" json:"owner_id,omitempty"`
	Size       *int64       `gorm:"column:size" json:"size,omitempty"`
	Width      *int         `gorm:"column:width" json:"width,omitempty"`
	Height     *int         `gorm:"column:height" json:"height,omitempty"`
	Resolution *string      `gorm:"column:resolution;size:32" json:"resolution,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	Variants []MediaRecord `gorm:"foreignKey:ParentID" json:"variants,omitempty"`
}

func (MediaRecord) TableName() string {
	return "media"
}

// Validate checks the parent/variant and owner invariants of a single record.
func (m *MediaRecord) Validate() error {
	if m.Path == "" {
		return fmt.Errorf("media record has empty path")
	}
	if m.ParentID != nil && m.Variant == VariantOriginal {
		return fmt.Errorf("media record with parent %d cannot be labelled %q", *m.ParentID, VariantOriginal)
	}
	if m.ParentID == nil && m.Variant != VariantOriginal {
		return fmt.Errorf("variant %q requires a parent", m.Variant)
	}
	if (m.OwnerType == nil) != (m.OwnerID == nil) {
		return fmt.Errorf("owner reference must be fully set or fully absent")
	}
	return nil
}

// RootID returns the id of the original this record belongs to.
func (m *MediaRecord) RootID() uint {
	if m.ParentID != nil {
		return *m.ParentID
	}
	return m.ID
}

// Owner is a polymorphic reference to the business entity media is attached to.
type Owner struct {
	Type string
	ID   string
}

func (o Owner) Validate() error {
	if strings.TrimSpace(o.Type) == "" || strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: owner type and id are required", ErrInvalidSelection)
	}
	return nil
}

func (o Owner) String() string {
	return o.Type + ":" + o.ID
}

// Selection is a caller's choice of media to attach. MediaID may reference an
// original or any of its variants.
type Selection struct {
	MediaID uint `json:"media_id"`
	IsMain  bool `json:"is_main"`
}

type VariantDescriptor struct {
	ID           uint         `json:"id"`
	Variant      VariantLabel `json:"variant"`
	Path         string       `json:"file_path"`
	Size         *int64       `json:"size"`
	Width        *int         `json:"width"`
	Height       *int         `json:"height"`
	Resolution   *string      `json:"resolution"`
	OriginalName string       `json:"original_name,omitempty"`
}

// UploadResult describes one upload transaction: the original and its derived variants.
type UploadResult struct {
	ID           uint                `json:"id"`
	Path         string              `json:"file_path"`
	MimeType     string              `json:"mime_type"`
	Variant      VariantLabel        `json:"variant"`
	OriginalName string              `json:"original_name,omitempty"`
	Variants     []VariantDescriptor `json:"variants"`
}

// Dimensions formats width and height the way the resolution column stores them.
func Dimensions(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
