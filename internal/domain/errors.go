package domain

import "errors"

var (
	ErrStorageInit       = errors.New("storage directory cannot be prepared")
	ErrStorageWrite      = errors.New("file cannot be written to storage")
	ErrVariantGeneration = errors.New("variant cannot be generated")
	ErrMetadataWrite     = errors.New("media metadata cannot be written")
	ErrNotFound          = errors.New("media not found")
	ErrUnknownOwnerType  = errors.New("unknown owner type")
	ErrInvalidSelection  = errors.New("invalid media selection")
)
