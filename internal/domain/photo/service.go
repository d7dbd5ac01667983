package photo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/photoshare/photoshare-web/internal/domain/auth"
	"github.com/photoshare/photoshare-web/internal/pkg/apperror"
	"github.com/photoshare/photoshare-web/internal/pkg/imaging"
	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/storage"
	"github.com/photoshare/photoshare-web/internal/pkg/taskqueue"
)

const (
	// ThumbnailQueue is the queue thumbnail tasks are added to
	ThumbnailQueue = "thumbnails"
	// GenerateThumbnailPath is the task target
	GenerateThumbnailPath = "/generate_thumbnail"
)

// Thumbnailer renders the small version of a photo
type Thumbnailer interface {
	Thumbnail(r io.Reader, contentType string) (*imaging.Thumbnail, error)
}

// Notifier announces finished thumbnails to connected viewers
type Notifier interface {
	ThumbnailReady(ctx context.Context, photoID int64) error
}

// Service handles photo business logic
type Service struct {
	repo     Repository
	blobs    storage.Storage
	thumbs   Thumbnailer
	queue    taskqueue.Queue
	notifier Notifier
	now      func() time.Time
}

// NewService creates photo service. notifier may be nil.
func NewService(repo Repository, blobs storage.Storage, thumbs Thumbnailer, queue taskqueue.Queue, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		thumbs:   thumbs,
		queue:    queue,
		notifier: notifier,
		now:      time.Now,
	}
}

// SplitTags splits on commas and trims each element.
// Empty elements are kept: "a,,b," gives [a "" b ""].
func SplitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, len(parts))
	for i, p := range parts {
		tags[i] = strings.TrimSpace(p)
	}
	return tags
}

// ParsePrivate reports whether the private checkbox was ticked
func ParsePrivate(v string) bool {
	return v == "on"
}

// Upload stores the original in the blob store and records a new Photo
func (s *Service) Upload(ctx context.Context, owner *auth.User, in *UploadInput) (*Photo, error) {
	if owner == nil {
		return nil, apperror.Unauthorized(ErrLoginRequired)
	}
	if in == nil || in.File == nil {
		return nil, apperror.InvalidInput(ErrMissingPhotoFile)
	}

	body := bufio.NewReaderSize(in.File, 512)
	head, _ := body.Peek(512)
	contentType := storage.NormalizeContentType(in.ContentType, head)

	key := uuid.New().String() + storage.ExtensionForMime(contentType)
	if err := s.blobs.Put(ctx, key, body, contentType); err != nil {
		return nil, apperror.Upstreamf(err, "store photo %s", key)
	}

	photo := &Photo{
		Caption:     in.Caption,
		Tags:        SplitTags(in.Tags),
		Owner:       owner.ID,
		OwnerName:   owner.Nickname,
		BlobKey:     key,
		Private:     ParsePrivate(in.Private),
		ContentType: contentType,
		Comments:    Comments{},
	}

	if err := s.repo.Create(ctx, photo); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			logger.FromContext(ctx).Warn().Err(delErr).Str("blob_key", key).Msg("Failed to remove orphaned blob")
		}
		return nil, fmt.Errorf("create photo: %w", err)
	}

	logger.FromContext(ctx).Info().
		Int64("photo_id", photo.ID).
		Str("owner", photo.Owner).
		Str("content_type", photo.ContentType).
		Bool("private", photo.Private).
		Msg("Photo uploaded")

	return photo, nil
}

// Home lists the signed-in user's photos, or every public photo for anonymous viewers
func (s *Service) Home(ctx context.Context, viewer *auth.User) ([]*Photo, error) {
	if viewer == nil {
		return s.repo.ListPublic(ctx)
	}
	return s.repo.ListByOwner(ctx, viewer.ID)
}

// UserHome lists the photos owned by viewer
func (s *Service) UserHome(ctx context.Context, viewer *auth.User) ([]*Photo, error) {
	if viewer == nil {
		return nil, apperror.Unauthorized(ErrLoginRequired)
	}
	return s.repo.ListByOwner(ctx, viewer.ID)
}

// AllPhotos lists public photos plus the viewer's private ones
func (s *Service) AllPhotos(ctx context.Context, viewer *auth.User) ([]*Photo, error) {
	if viewer == nil {
		return nil, apperror.Unauthorized(ErrLoginRequired)
	}
	return s.repo.ListPublicOrOwned(ctx, viewer.ID)
}

// Search returns photos carrying tag. Public matches come first, then the
// viewer's own matches that were not already listed.
func (s *Service) Search(ctx context.Context, viewer *auth.User, tag string) ([]*Photo, error) {
	public, err := s.repo.ListPublicByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if viewer == nil {
		return public, nil
	}

	owned, err := s.repo.ListOwnedByTag(ctx, viewer.ID, tag)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(public))
	for _, p := range public {
		seen[p.ID] = true
	}
	photos := public
	for _, p := range owned {
		if !seen[p.ID] {
			seen[p.ID] = true
			photos = append(photos, p)
		}
	}
	return photos, nil
}

// Get loads a photo by id
func (s *Service) Get(ctx context.Context, id int64) (*Photo, error) {
	photo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get photo %d: %w", id, err)
	}
	if photo == nil {
		return nil, apperror.NotFound(ErrPhotoNotFound)
	}
	return photo, nil
}

// Thumbnail returns the thumbnail bytes and their content type
func (s *Service) Thumbnail(ctx context.Context, id int64) ([]byte, string, error) {
	photo, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !photo.Thumbnailed || photo.Thumbnail == nil {
		return nil, "", apperror.NotFound(ErrThumbnailNotReady)
	}
	return photo.Thumbnail, photo.ThumbnailContentType(), nil
}

// OpenOriginal opens the uploaded bytes for a blob key. The caller closes Body.
func (s *Service) OpenOriginal(ctx context.Context, blobKey string) (*storage.Object, error) {
	obj, err := s.blobs.Get(ctx, blobKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound(ErrBlobNotFound)
		}
		return nil, apperror.Upstreamf(err, "open blob %s", blobKey)
	}
	return obj, nil
}

// AddComment appends a comment by author and saves the whole photo.
// Concurrent appends to one photo are last-write-wins.
func (s *Service) AddComment(ctx context.Context, author *auth.User, photoID int64, content string) (*Photo, error) {
	if author == nil {
		return nil, apperror.Unauthorized(ErrLoginRequired)
	}

	photo, err := s.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}

	photo.Comments = append(photo.Comments, Comment{
		Content:   content,
		CreatedAt: s.now().UTC(),
		AuthorID:  author.ID,
		Author:    author.Nickname,
	})

	if err := s.repo.Update(ctx, photo); err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			return nil, apperror.NotFound(err)
		}
		return nil, fmt.Errorf("save comment on photo %d: %w", photoID, err)
	}

	return photo, nil
}

// GenerateThumbnail renders and stores the thumbnail of one photo.
// Running it again overwrites the previous thumbnail.
func (s *Service) GenerateThumbnail(ctx context.Context, photoID int64) (*Photo, error) {
	photo, err := s.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}

	obj, err := s.OpenOriginal(ctx, photo.BlobKey)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	thumb, err := s.thumbs.Thumbnail(obj.Body, photo.ContentType)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedImage) {
			return nil, apperror.InvalidInput(fmt.Errorf("%w: %v", ErrUnreadableImage, err))
		}
		return nil, fmt.Errorf("thumbnail photo %d: %w", photoID, err)
	}

	photo.Thumbnail = thumb.Data
	photo.ThumbnailType = thumb.ContentType
	photo.Thumbnailed = true
	photo.Placeholder = thumb.Placeholder

	if err := s.repo.Update(ctx, photo); err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			return nil, apperror.NotFound(err)
		}
		return nil, fmt.Errorf("save thumbnail of photo %d: %w", photoID, err)
	}

	l := logger.FromContext(ctx)
	l.Info().
		Int64("photo_id", photoID).
		Int("width", thumb.Width).
		Int("height", thumb.Height).
		Int("bytes", len(thumb.Data)).
		Msg("Thumbnail generated")

	if s.notifier != nil {
		if err := s.notifier.ThumbnailReady(ctx, photoID); err != nil {
			l.Warn().Err(err).Int64("photo_id", photoID).Msg("Failed to announce thumbnail")
		}
	}

	return photo, nil
}

// EnqueueThumbnails adds one generate task per photo still lacking a thumbnail
func (s *Service) EnqueueThumbnails(ctx context.Context) (int, error) {
	ids, err := s.repo.ListUnthumbnailedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list photos without thumbnail: %w", err)
	}

	for i, id := range ids {
		task := taskqueue.NewTask(ThumbnailQueue, GenerateThumbnailPath, url.Values{
			"key": {strconv.FormatInt(id, 10)},
		})
		if err := s.queue.Add(ctx, task); err != nil {
			return i, apperror.Upstream(fmt.Errorf("%w: %v", ErrQueueUnavailable, err))
		}
	}

	if len(ids) > 0 {
		logger.FromContext(ctx).Info().Int("count", len(ids)).Msg("Thumbnail tasks enqueued")
	}
	return len(ids), nil
}

// ParseID parses a decimal photo id
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.InvalidInput(ErrInvalidPhotoID)
	}
	return id, nil
}

