package photo

import "errors"

var (
	ErrPhotoNotFound     = errors.New("photo not found")
	ErrBlobNotFound      = errors.New("photo file not found")
	ErrThumbnailNotReady = errors.New("thumbnail not generated yet")
	ErrInvalidPhotoID    = errors.New("invalid photo id")
	ErrMissingPhotoFile  = errors.New("photo file is required")
	ErrUploadTooLarge    = errors.New("upload exceeds the maximum size")
	ErrLoginRequired     = errors.New("login required")
	ErrUnreadableImage   = errors.New("photo could not be decoded")
	ErrQueueUnavailable  = errors.New("task queue unavailable")
)
