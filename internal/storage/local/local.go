package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/storage"
)

const (
	uploadsRoot = "uploads"
	dirMode     = 0o755
	maxExtLen   = 10
)

type Option func(*LocalStorage)

// WithClock overrides the time source used for date sharding.
func WithClock(now func() time.Time) Option {
	return func(s *LocalStorage) {
		s.now = now
	}
}

type LocalStorage struct {
	baseDir string
	now     func() time.Time
}

var (
	_ storage.Storage       = (*LocalStorage)(nil)
	_ storage.PathAllocator = (*LocalStorage)(nil)
)

func NewLocalStorage(baseDir string, opts ...Option) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, dirMode); err != nil {
		return nil, fmt.Errorf("%w: create base directory %s: %w", domain.ErrStorageInit, baseDir, err)
	}

	s := &LocalStorage{
		baseDir: baseDir,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Allocate returns uploads/<yyyy>/<mm>/<dd>/ for the current date and makes
// sure the directory exists.
func (s *LocalStorage) Allocate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now()
	folder := fmt.Sprintf("%s/%04d/%02d/%02d/", uploadsRoot, now.Year(), int(now.Month()), now.Day())

	if err := os.MkdirAll(s.FullPath(folder), dirMode); err != nil {
		return "", fmt.Errorf("%w: create folder %s: %w", domain.ErrStorageInit, folder, err)
	}
	return folder, nil
}

func (s *LocalStorage) Store(ctx context.Context, r io.Reader, folder, desiredName string) (storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return storage.FileInfo{}, err
	}

	relPath := path.Join(cleanRel(folder), generateName(desiredName))
	fullPath := s.FullPath(relPath)
	tmpPath := fullPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return storage.FileInfo{}, fmt.Errorf("%w: create %s: %w", domain.ErrStorageWrite, relPath, err)
	}

	size, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		os.Remove(tmpPath)
		return storage.FileInfo{}, fmt.Errorf("%w: write %s: %w", domain.ErrStorageWrite, relPath, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return storage.FileInfo{}, fmt.Errorf("%w: sync %s: %w", domain.ErrStorageWrite, relPath, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return storage.FileInfo{}, fmt.Errorf("%w: close %s: %w", domain.ErrStorageWrite, relPath, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return storage.FileInfo{}, fmt.Errorf("%w: rename %s: %w", domain.ErrStorageWrite, relPath, err)
	}

	return storage.FileInfo{
		Path: relPath,
		Size: size,
	}, nil
}

func (s *LocalStorage) Open(ctx context.Context, relPath string) (io.ReadSeekCloser, storage.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.FileInfo{}, err
	}

	relPath = cleanRel(relPath)
	file, err := os.Open(s.FullPath(relPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.FileInfo{}, fmt.Errorf("%w: %s", domain.ErrNotFound, relPath)
		}
		return nil, storage.FileInfo{}, fmt.Errorf("open %s: %w", relPath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, storage.FileInfo{}, fmt.Errorf("stat %s: %w", relPath, err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, storage.FileInfo{}, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, relPath)
	}

	return file, storage.FileInfo{Path: relPath, Size: stat.Size()}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, relPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	relPath = cleanRel(relPath)
	if relPath == "" {
		return false, nil
	}

	if err := os.Remove(s.FullPath(relPath)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete %s: %w", relPath, err)
	}
	return true, nil
}

func (s *LocalStorage) FullPath(relPath string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(cleanRel(relPath)))
}

// cleanRel normalises a relative path so it can never climb above the root.
func cleanRel(p string) string {
	cleaned := path.Clean("/" + filepath.ToSlash(p))
	return strings.TrimPrefix(cleaned, "/")
}

func generateName(desiredName string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return id + safeExt(desiredName)
}

func safeExt(name string) string {
	ext := strings.ToLower(path.Ext(filepath.ToSlash(name)))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return ""
		}
	}
	return ext
}
