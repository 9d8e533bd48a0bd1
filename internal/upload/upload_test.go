package upload

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ondrasimku/media-pipeline/internal/database/dbtest"
	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/ondrasimku/media-pipeline/internal/repository"
	"github.com/ondrasimku/media-pipeline/internal/storage/local"
	"github.com/ondrasimku/media-pipeline/internal/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	store   *local.LocalStorage
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := dbtest.Open(t)

	store, err := local.NewLocalStorage(t.TempDir(), local.WithClock(func() time.Time {
		return time.Date(2025, time.August, 12, 9, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	image := NewImageStrategy(store, store, variant.NewGenerator(store, variant.WithMaxPixels(4_000_000)), repository.NewTxRunner(db), ImageOptions{
		ThumbnailHeight: 200,
		ThumbnailPrefix: "thumbnail_",
	}, logger)
	document := NewDocumentStrategy(store, store, repository.NewMediaRepository(db), logger)

	return &fixture{
		db:      db,
		store:   store,
		manager: NewManager(NewDispatcher(image, document), logger),
	}
}

func (f *fixture) records(t *testing.T) []domain.MediaRecord {
	t.Helper()
	var records []domain.MediaRecord
	require.NoError(t, f.db.Order("id").Find(&records).Error)
	return records
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{R: 10, G: 90, B: 160, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

// rotatedJPEG encodes a w x h JPEG tagged with EXIF orientation 6, which
// viewers display rotated 90 degrees clockwise.
func rotatedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	plain := jpegBytes(t, w, h)

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, []uint16{42})
	binary.Write(&tiff, binary.BigEndian, []uint32{8})
	binary.Write(&tiff, binary.BigEndian, []uint16{1, 0x0112, 3})
	binary.Write(&tiff, binary.BigEndian, []uint32{1})
	binary.Write(&tiff, binary.BigEndian, []uint16{6, 0})
	binary.Write(&tiff, binary.BigEndian, []uint32{0})

	segment := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(plain[:2])
	out.Write([]byte{0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(len(segment)+2))
	out.Write(segment)
	out.Write(plain[2:])
	return out.Bytes()
}

func TestDispatch(t *testing.T) {
	image := &ImageStrategy{}
	document := &DocumentStrategy{}
	d := NewDispatcher(image, document)

	tests := []struct {
		mime string
		want Strategy
	}{
		{"image/jpeg", image},
		{"IMAGE/PNG", image},
		{" image/webp", image},
		{"application/pdf", document},
		{"text/plain", document},
		{"", document},
		{"imagery/foo", document},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Same(t, tt.want, d.Dispatch(tt.mime))
		})
	}
}

func TestImageUploadPersistsOriginalAndThumbnail(t *testing.T) {
	f := newFixture(t)
	payload := jpegBytes(t, 1200, 800)

	result, err := f.manager.Upload(context.Background(), File{
		Name:     "cat.jpg",
		MimeType: "image/jpeg",
		Reader:   bytes.NewReader(payload),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.VariantOriginal, result.Variant)
	assert.Equal(t, "cat.jpg", result.OriginalName)
	assert.Contains(t, result.Path, "uploads/2025/08/12/")
	require.Len(t, result.Variants, 1)
	thumb := result.Variants[0]
	assert.Equal(t, domain.VariantThumbnail, thumb.Variant)
	require.NotNil(t, thumb.Height)
	require.NotNil(t, thumb.Width)
	assert.Equal(t, 200, *thumb.Height)
	assert.Equal(t, 300, *thumb.Width)

	records := f.records(t)
	require.Len(t, records, 2)
	original, thumbnail := records[0], records[1]
	assert.Equal(t, domain.VariantOriginal, original.Variant)
	assert.Nil(t, original.ParentID)
	assert.Equal(t, domain.VariantThumbnail, thumbnail.Variant)
	require.NotNil(t, thumbnail.ParentID)
	assert.Equal(t, original.ID, *thumbnail.ParentID)
	assert.Equal(t, "image/jpeg", original.MimeType)
	assert.Equal(t, "image/jpeg", thumbnail.MimeType)
	require.NotNil(t, original.Resolution)
	assert.Equal(t, "1200x800", *original.Resolution)

	stat, err := os.Stat(f.store.FullPath(result.Path))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), stat.Size())

	w, h, err := variant.NewGenerator(f.store).Probe(thumb.Path)
	require.NoError(t, err)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestImageUploadRecordsOrientedDimensions(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.Upload(context.Background(), File{
		Name:     "phone.jpg",
		MimeType: "image/jpeg",
		Reader:   bytes.NewReader(rotatedJPEG(t, 1200, 800)),
	})
	require.NoError(t, err)

	records := f.records(t)
	require.Len(t, records, 2)
	original, thumbnail := records[0], records[1]
	require.NotNil(t, original.Resolution)
	require.NotNil(t, thumbnail.Resolution)
	assert.Equal(t, "800x1200", *original.Resolution)
	assert.Equal(t, "133x200", *thumbnail.Resolution)
	assert.Equal(t, *thumbnail.Resolution, *result.Variants[0].Resolution)

	// both rows describe a portrait image
	assert.Less(t, *original.Width, *original.Height)
	assert.Less(t, *thumbnail.Width, *thumbnail.Height)
}

func TestImageUploadRejectsOversizedImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Upload(context.Background(), File{
		Name:     "huge.jpg",
		MimeType: "image/jpeg",
		Reader:   bytes.NewReader(jpegBytes(t, 2100, 2000)),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))
	assert.Empty(t, f.records(t))
}

func TestDocumentUploadPersistsSingleOriginal(t *testing.T) {
	f := newFixture(t)
	payload := []byte("%PDF-1.4 not really a pdf")

	result, err := f.manager.Upload(context.Background(), File{
		Name:     "invoice.pdf",
		MimeType: "application/pdf",
		Reader:   bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Variants)
	assert.Equal(t, domain.VariantOriginal, result.Variant)

	records := f.records(t)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].ParentID)
	assert.Equal(t, domain.VariantOriginal, records[0].Variant)

	rc, info, err := f.store.Open(context.Background(), result.Path)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(len(payload)), info.Size)
}

func TestEmptyMimeIsStoredAsDocument(t *testing.T) {
	f := newFixture(t)

	result, err := f.manager.Upload(context.Background(), File{
		Name:   "blob",
		Reader: bytes.NewReader([]byte{1, 2, 3}),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Variants)
	assert.Len(t, f.records(t), 1)
}

func TestImageUploadAbortsOnVariantFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Upload(context.Background(), File{
		Name:     "broken.jpg",
		MimeType: "image/jpeg",
		Reader:   bytes.NewReader([]byte("definitely not a jpeg")),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))
	assert.Empty(t, f.records(t))
}

func TestImageUploadRollsBackOnMetadataFailure(t *testing.T) {
	f := newFixture(t)
	inserts := 0
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_second_insert", func(tx *gorm.DB) {
		inserts++
		if inserts == 2 {
			tx.AddError(errors.New("disk quota exceeded"))
		}
	}))

	_, err := f.manager.Upload(context.Background(), File{
		Name:     "cat.jpg",
		MimeType: "image/jpeg",
		Reader:   bytes.NewReader(jpegBytes(t, 400, 400)),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMetadataWrite))
	assert.Empty(t, f.records(t))

	// physical files are left behind for out-of-band cleanup
	entries, err := os.ReadDir(f.store.FullPath("uploads/2025/08/12/"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUploadWithoutReader(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Upload(context.Background(), File{Name: "x.txt", MimeType: "text/plain"})
	assert.True(t, errors.Is(err, domain.ErrStorageWrite))
}

func TestParallelUploadsProduceDistinctPaths(t *testing.T) {
	f := newFixture(t)
	small := jpegBytes(t, 32, 24)

	const n = 100
	var (
		mu    sync.Mutex
		paths = make(map[string]struct{})
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			file := File{Name: "same.txt", MimeType: "text/plain", Reader: bytes.NewReader([]byte(fmt.Sprintf("doc %d", i)))}
			if i%4 == 0 {
				file = File{Name: "same.jpg", MimeType: "image/jpeg", Reader: bytes.NewReader(small)}
			}
			result, err := f.manager.Upload(context.Background(), file)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			paths[result.Path] = struct{}{}
			for _, v := range result.Variants {
				paths[v.Path] = struct{}{}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, paths, n+n/4)
	assert.Len(t, f.records(t), n+n/4)
}
