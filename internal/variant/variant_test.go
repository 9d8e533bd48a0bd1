package variant

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/ondrasimku/media-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirResolver string

func (d dirResolver) FullPath(rel string) string {
	return filepath.Join(string(d), filepath.FromSlash(rel))
}

func writeImage(t *testing.T, root dirResolver, rel string, w, h int) {
	t.Helper()
	full := root.FullPath(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, full))
}

func TestDeriveResizedImageScalesToHeight(t *testing.T) {
	root := dirResolver(t.TempDir())
	writeImage(t, root, "uploads/2025/08/04/cat.jpg", 1200, 800)
	g := NewGenerator(root)

	res, err := g.DeriveResizedImage(context.Background(), "uploads/2025/08/04/cat.jpg", 200, "thumbnail_")
	require.NoError(t, err)

	assert.Equal(t, "uploads/2025/08/04/thumbnail_cat.jpg", res.Path)
	assert.Equal(t, 200, res.Height)
	assert.Equal(t, 300, res.Width)
	assert.Greater(t, res.Size, int64(0))

	w, h, err := g.Probe(res.Path)
	require.NoError(t, err)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestDeriveResizedImageKeepsAspectRatioWithRounding(t *testing.T) {
	root := dirResolver(t.TempDir())
	writeImage(t, root, "uploads/odd.png", 1000, 750)
	g := NewGenerator(root)

	res, err := g.DeriveResizedImage(context.Background(), "uploads/odd.png", 200, "thumbnail_")
	require.NoError(t, err)

	assert.Equal(t, 200, res.Height)
	assert.InDelta(t, 267, res.Width, 1)
}

func TestDeriveResizedImageDoesNotUpscale(t *testing.T) {
	root := dirResolver(t.TempDir())
	writeImage(t, root, "uploads/small.png", 90, 60)
	g := NewGenerator(root)

	res, err := g.DeriveResizedImage(context.Background(), "uploads/small.png", 200, "thumbnail_")
	require.NoError(t, err)

	assert.Equal(t, "uploads/thumbnail_small.png", res.Path)
	assert.Equal(t, 90, res.Width)
	assert.Equal(t, 60, res.Height)
	_, err = os.Stat(root.FullPath(res.Path))
	assert.NoError(t, err)
}

func TestDeriveResizedImageRejectsNonImage(t *testing.T) {
	root := dirResolver(t.TempDir())
	full := root.FullPath("uploads/notes.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("plain text, not a jpeg"), 0o644))
	g := NewGenerator(root)

	_, err := g.DeriveResizedImage(context.Background(), "uploads/notes.jpg", 200, "thumbnail_")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))

	_, statErr := os.Stat(root.FullPath("uploads/thumbnail_notes.jpg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeriveResizedImageMissingSource(t *testing.T) {
	g := NewGenerator(dirResolver(t.TempDir()))

	_, err := g.DeriveResizedImage(context.Background(), "uploads/gone.png", 200, "thumbnail_")
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))
}

func TestDeriveResizedImageInvalidHeight(t *testing.T) {
	root := dirResolver(t.TempDir())
	writeImage(t, root, "uploads/a.png", 10, 10)
	g := NewGenerator(root)

	_, err := g.DeriveResizedImage(context.Background(), "uploads/a.png", 0, "thumbnail_")
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))
}

// pngHeader returns a PNG holding only a signature and an IHDR chunk that
// declares w x h truecolor pixels.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor

	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

// withOrientation inserts an EXIF APP1 segment carrying the orientation tag
// right after the JPEG SOI marker.
func withOrientation(t *testing.T, jpeg []byte, orientation uint16) []byte {
	t.Helper()
	require.True(t, bytes.HasPrefix(jpeg, []byte{0xff, 0xd8}))

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(42))
	binary.Write(&tiff, binary.LittleEndian, uint32(8))
	binary.Write(&tiff, binary.LittleEndian, uint16(1))      // entries
	binary.Write(&tiff, binary.LittleEndian, uint16(0x0112)) // orientation
	binary.Write(&tiff, binary.LittleEndian, uint16(3))      // SHORT
	binary.Write(&tiff, binary.LittleEndian, uint32(1))
	binary.Write(&tiff, binary.LittleEndian, uint32(orientation))
	binary.Write(&tiff, binary.LittleEndian, uint32(0)) // next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(jpeg[:2])
	out.Write([]byte{0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpeg[2:])
	return out.Bytes()
}

func TestDeriveResizedImageRejectsOversizedHeader(t *testing.T) {
	root := dirResolver(t.TempDir())
	full := root.FullPath("uploads/bomb.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, pngHeader(20000, 20000), 0o644))
	g := NewGenerator(root)

	_, err := g.DeriveResizedImage(context.Background(), "uploads/bomb.png", 200, "thumbnail_")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))
	assert.Contains(t, err.Error(), "pixel limit")

	_, _, err = g.Probe("uploads/bomb.png")
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))

	_, statErr := os.Stat(root.FullPath("uploads/thumbnail_bomb.png"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeriveResizedImageHonoursMaxPixels(t *testing.T) {
	root := dirResolver(t.TempDir())
	writeImage(t, root, "uploads/wide.png", 400, 300)

	_, err := NewGenerator(root, WithMaxPixels(100_000)).DeriveResizedImage(context.Background(), "uploads/wide.png", 200, "thumbnail_")
	assert.True(t, errors.Is(err, domain.ErrVariantGeneration))

	res, err := NewGenerator(root, WithMaxPixels(120_000)).DeriveResizedImage(context.Background(), "uploads/wide.png", 200, "thumbnail_")
	require.NoError(t, err)
	assert.Equal(t, 200, res.Height)
}

func TestDeriveResizedImageAppliesOrientation(t *testing.T) {
	root := dirResolver(t.TempDir())
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(1200, 800, color.NRGBA{B: 255, A: 255}), imaging.JPEG))
	full := root.FullPath("uploads/portrait.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, withOrientation(t, buf.Bytes(), 6), 0o644))

	res, err := NewGenerator(root).DeriveResizedImage(context.Background(), "uploads/portrait.jpg", 200, "thumbnail_")
	require.NoError(t, err)

	assert.Equal(t, 800, res.SourceWidth)
	assert.Equal(t, 1200, res.SourceHeight)
	assert.Equal(t, 200, res.Height)
	assert.InDelta(t, 133, res.Width, 1)
}
