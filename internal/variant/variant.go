// Package variant derives resized image representations from stored originals.
//
// Images are never upscaled: when the source is already at or below the target
// height the variant is a re-encoded copy at the source dimensions. Sources are
// decoded with their EXIF orientation applied, and images whose header declares
// more than the configured pixel count are refused before any pixel is decoded.
package variant

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path"

	"github.com/disintegration/imaging"
	"github.com/ondrasimku/media-pipeline/internal/domain"
)

// Resolver maps relative storage paths onto the filesystem.
type Resolver interface {
	FullPath(relPath string) string
}

// DefaultMaxPixels bounds decoded images to roughly 256 MiB of NRGBA pixels.
const DefaultMaxPixels = 64_000_000

type Result struct {
	Path   string
	Size   int64
	Width  int
	Height int
	// SourceWidth and SourceHeight are the oriented dimensions of the source.
	SourceWidth  int
	SourceHeight int
}

type Option func(*Generator)

// WithMaxPixels sets the largest width*height accepted for decoding. Values
// below one keep the default.
func WithMaxPixels(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxPixels = n
		}
	}
}

type Generator struct {
	resolver  Resolver
	maxPixels int
}

func NewGenerator(resolver Resolver, opts ...Option) *Generator {
	g := &Generator{resolver: resolver, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Probe decodes only the image header of a stored file. Dimensions are as
// stored, without EXIF orientation.
func (g *Generator) Probe(relPath string) (width, height int, err error) {
	f, err := os.Open(g.resolver.FullPath(relPath))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: open %s: %w", domain.ErrVariantGeneration, relPath, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: decode %s: %w", domain.ErrVariantGeneration, relPath, err)
	}
	if err := g.checkPixels(relPath, cfg); err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// DeriveResizedImage scales the image at sourcePath to targetHeight keeping the
// aspect ratio and writes it next to the source as namePrefix+basename.
func (g *Generator) DeriveResizedImage(ctx context.Context, sourcePath string, targetHeight int, namePrefix string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if targetHeight <= 0 {
		return Result{}, fmt.Errorf("%w: target height must be positive, got %d", domain.ErrVariantGeneration, targetHeight)
	}

	src, err := os.Open(g.resolver.FullPath(sourcePath))
	if err != nil {
		return Result{}, fmt.Errorf("%w: open %s: %w", domain.ErrVariantGeneration, sourcePath, err)
	}
	defer src.Close()

	cfg, formatName, err := image.DecodeConfig(src)
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode %s: %w", domain.ErrVariantGeneration, sourcePath, err)
	}
	if err := g.checkPixels(sourcePath, cfg); err != nil {
		return Result{}, err
	}
	format, err := imaging.FormatFromExtension(formatName)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode %s as %s: %w", domain.ErrVariantGeneration, sourcePath, formatName, err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("%w: rewind %s: %w", domain.ErrVariantGeneration, sourcePath, err)
	}

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode %s: %w", domain.ErrVariantGeneration, sourcePath, err)
	}

	sourceWidth, sourceHeight := img.Bounds().Dx(), img.Bounds().Dy()
	if sourceHeight > targetHeight {
		img = imaging.Resize(img, 0, targetHeight, imaging.Lanczos)
	}

	dir, name := path.Split(sourcePath)
	relPath := path.Join(dir, namePrefix+name)

	size, err := g.write(relPath, img, format)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Path:         relPath,
		Size:         size,
		Width:        img.Bounds().Dx(),
		Height:       img.Bounds().Dy(),
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
	}, nil
}

func (g *Generator) checkPixels(relPath string, cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %s declares %dx%d", domain.ErrVariantGeneration, relPath, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(g.maxPixels) {
		return fmt.Errorf("%w: %s is %dx%d, above the %d pixel limit",
			domain.ErrVariantGeneration, relPath, cfg.Width, cfg.Height, g.maxPixels)
	}
	return nil
}

func (g *Generator) write(relPath string, img image.Image, format imaging.Format) (int64, error) {
	fullPath := g.resolver.FullPath(relPath)
	dst, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", domain.ErrVariantGeneration, relPath, err)
	}

	if err := imaging.Encode(dst, img, format); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return 0, fmt.Errorf("%w: encode %s: %w", domain.ErrVariantGeneration, relPath, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(fullPath)
		return 0, fmt.Errorf("%w: close %s: %w", domain.ErrVariantGeneration, relPath, err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", domain.ErrVariantGeneration, relPath, err)
	}
	return info.Size(), nil
}
