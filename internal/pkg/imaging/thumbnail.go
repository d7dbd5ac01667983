package imaging

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"math"

	"github.com/bbrks/go-blurhash"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// DefaultSize is the bounding box edge of generated thumbnails
const DefaultSize = 128

// JPEG quality used when re-encoding thumbnails
const jpegQuality = 85

// ErrUnsupportedImage is returned when the source bytes cannot be decoded
var ErrUnsupportedImage = errors.New("unsupported image")

// Thumbnail is a resized rendition of a photo
type Thumbnail struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	// Placeholder is a BlurHash of the thumbnail, empty if it couldn't be computed
	Placeholder string
}

// Thumbnailer resizes images to fit inside a square box
type Thumbnailer struct {
	size int
}

// NewThumbnailer creates a thumbnailer for the given box size
func NewThumbnailer(size int) *Thumbnailer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Thumbnailer{size: size}
}

// Thumbnail decodes the image, scales it up or down so its longer edge
// matches the box keeping the aspect ratio, and encodes it in the source
// format when possible.
func (t *Thumbnailer) Thumbnail(r io.Reader, contentType string) (*Thumbnail, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	thumb := img
	b := img.Bounds()
	if w, h := fitBox(b.Dx(), b.Dy(), t.size); w != b.Dx() || h != b.Dy() {
		thumb = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	format, outType := encodeFormat(contentType)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	result := &Thumbnail{
		Data:        buf.Bytes(),
		ContentType: outType,
		Width:       thumb.Bounds().Dx(),
		Height:      thumb.Bounds().Dy(),
	}

	// 4 horizontal, 3 vertical components
	if hash, err := blurhash.Encode(4, 3, thumb); err == nil {
		result.Placeholder = hash
	}

	return result, nil
}

// encodeFormat picks the output format for a source content type.
// Formats imaging cannot write (WebP) fall back to JPEG.
func encodeFormat(contentType string) (imaging.Format, string) {
	switch contentType {
	case "image/png":
		return imaging.PNG, "image/png"
	case "image/gif":
		return imaging.GIF, "image/gif"
	case "image/bmp":
		return imaging.BMP, "image/bmp"
	case "image/tiff":
		return imaging.TIFF, "image/tiff"
	default:
		return imaging.JPEG, "image/jpeg"
	}
}

// fitBox returns the size whose longer edge is box and whose other edge
// keeps the aspect ratio, never below one pixel
func fitBox(w, h, box int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if w >= h {
		return box, max(1, int(math.Round(float64(h)*float64(box)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(box)/float64(h)))), box
}
