package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrNotFound is returned when a key has no stored object
var ErrNotFound = errors.New("blob not found")

// Object is an open stored blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Storage is the blob store holding original photo bytes.
// Keys are opaque references handed out at upload time.
type Storage interface {
	// Put stores the content under key, replacing any existing object.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get opens the object stored under key. Returns ErrNotFound if missing.
	Get(ctx context.Context, key string) (*Object, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object. Returns nil if it doesn't exist.
	Delete(ctx context.Context, key string) error
}

// DetectContentType sniffs the MIME type from the first bytes of a file
func DetectContentType(head []byte) string {
	mimeType := http.DetectContentType(head)
	// "image/jpeg; charset=utf-8" -> "image/jpeg"
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// imageAliases maps non-standard image types browsers send to their registered name
var imageAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
}

// NormalizeContentType turns a declared Content-Type into a bare lowercase image
// type. Parameters are dropped and aliases mapped; a declared type that is not a
// known image type is replaced by one sniffed from head.
func NormalizeContentType(declared string, head []byte) string {
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		mediaType = strings.ToLower(mediaType)
		if alias, ok := imageAliases[mediaType]; ok {
			mediaType = alias
		}
		if ExtensionForMime(mediaType) != "" {
			return mediaType
		}
	}
	return DetectContentType(head)
}

// ExtensionForMime returns the file extension for a MIME type
func ExtensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ""
	}
}
