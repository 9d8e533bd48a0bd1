package upload

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/metrics"
	"github.com/ondrasimku/media-pipeline/internal/variant"
)

// File is an inbound upload: client filename, declared MIME type and content.
type File struct {
	Name     string
	MimeType string
	Reader   io.Reader
}

// Strategy runs the storage and metadata pipeline for one MIME class.
type Strategy interface {
	Name() string
	Upload(ctx context.Context, file File) (*domain.UploadResult, error)
}

// VariantGenerator is the image capability strategies depend on. The result
// carries the oriented source dimensions recorded on the original.
type VariantGenerator interface {
	DeriveResizedImage(ctx context.Context, sourcePath string, targetHeight int, namePrefix string) (variant.Result, error)
}

// Dispatcher picks a strategy from the declared MIME type. It never does I/O.
type Dispatcher struct {
	image    Strategy
	document Strategy
}

func NewDispatcher(image, document Strategy) *Dispatcher {
	return &Dispatcher{image: image, document: document}
}

// Dispatch selects the image strategy for image/* types and the document
// strategy for everything else, including an empty type.
func (d *Dispatcher) Dispatch(mimeType string) Strategy {
	if IsImage(mimeType) {
		return d.image
	}
	return d.document
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// reportOrphans records files that reached storage but whose metadata was
// never committed. They are left in place for out-of-band cleanup.
func reportOrphans(logger *slog.Logger, operation string, err error, paths ...string) {
	if len(paths) == 0 {
		return
	}
	metrics.OrphanedFilesTotal.Add(float64(len(paths)))
	logger.Error("Upload aborted, stored files left orphaned",
		"operation", operation,
		"paths", paths,
		"error", err,
	)
}
