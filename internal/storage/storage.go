package storage

import (
	"context"
	"io"
)

type FileInfo struct {
	// Path is relative to the storage root, slash separated.
	Path string
	Size int64
}

// Storage persists uploaded bytes under generated relative paths.
type Storage interface {
	// Store writes r into folder under a generated name. desiredName only
	// contributes its extension.
	Store(ctx context.Context, r io.Reader, folder, desiredName string) (FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadSeekCloser, FileInfo, error)
	// Delete reports false without error when the file is already gone.
	Delete(ctx context.Context, path string) (bool, error)
	// FullPath maps a relative path onto the backing filesystem.
	FullPath(path string) string
}

// PathAllocator hands out the folder new uploads are written to.
type PathAllocator interface {
	Allocate(ctx context.Context) (string, error)
}
