package photo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository defines photo data access interface.
// Every list is in ascending id order, i.e. upload order.
type Repository interface {
	Create(ctx context.Context, photo *Photo) error
	GetByID(ctx context.Context, id int64) (*Photo, error)
	Update(ctx context.Context, photo *Photo) error
	ListByOwner(ctx context.Context, owner string) ([]*Photo, error)
	ListPublic(ctx context.Context) ([]*Photo, error)
	ListPublicOrOwned(ctx context.Context, owner string) ([]*Photo, error)
	ListPublicByTag(ctx context.Context, tag string) ([]*Photo, error)
	ListOwnedByTag(ctx context.Context, owner, tag string) ([]*Photo, error)
	ListUnthumbnailedIDs(ctx context.Context) ([]int64, error)
}

// listColumns leaves out the thumbnail bytes, listings never need them
const listColumns = `id, caption, created_at, tags, owner, owner_name, blob_key, private,
	content_type, thumbnail_type, thumbnailed, placeholder, comments`

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new photo repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, photo *Photo) error {
	query := `
		INSERT INTO photos (caption, tags, owner, owner_name, blob_key, private, content_type,
			thumbnail, thumbnail_type, thumbnailed, placeholder, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	return r.db.QueryRowxContext(ctx, query,
		photo.Caption,
		tagsParam(photo.Tags),
		photo.Owner,
		photo.OwnerName,
		photo.BlobKey,
		photo.Private,
		photo.ContentType,
		photo.Thumbnail,
		photo.ThumbnailType,
		photo.Thumbnailed,
		photo.Placeholder,
		photo.Comments,
	).Scan(&photo.ID, &photo.CreatedAt)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Photo, error) {
	query := `SELECT * FROM photos WHERE id = $1`
	var photo Photo
	err := r.db.GetContext(ctx, &photo, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &photo, nil
}

// Update writes the whole entity back; id and created_at never change
func (r *repository) Update(ctx context.Context, photo *Photo) error {
	query := `
		UPDATE photos SET
			caption = :caption,
			tags = :tags,
			owner = :owner,
			owner_name = :owner_name,
			blob_key = :blob_key,
			private = :private,
			content_type = :content_type,
			thumbnail = :thumbnail,
			thumbnail_type = :thumbnail_type,
			thumbnailed = :thumbnailed,
			placeholder = :placeholder,
			comments = :comments
		WHERE id = :id
	`
	photo.Tags = tagsParam(photo.Tags)
	result, err := r.db.NamedExecContext(ctx, query, photo)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPhotoNotFound
	}
	return nil
}

func (r *repository) list(ctx context.Context, where string, args ...interface{}) ([]*Photo, error) {
	query := `SELECT ` + listColumns + ` FROM photos WHERE ` + where + ` ORDER BY id`
	photos := []*Photo{}
	err := r.db.SelectContext(ctx, &photos, query, args...)
	return photos, err
}

func (r *repository) ListByOwner(ctx context.Context, owner string) ([]*Photo, error) {
	return r.list(ctx, `owner = $1`, owner)
}

func (r *repository) ListPublic(ctx context.Context) ([]*Photo, error) {
	return r.list(ctx, `private = FALSE`)
}

func (r *repository) ListPublicOrOwned(ctx context.Context, owner string) ([]*Photo, error) {
	return r.list(ctx, `(private = FALSE OR owner = $1)`, owner)
}

func (r *repository) ListPublicByTag(ctx context.Context, tag string) ([]*Photo, error) {
	return r.list(ctx, `tags @> $1 AND private = FALSE`, pq.StringArray{tag})
}

func (r *repository) ListOwnedByTag(ctx context.Context, owner, tag string) ([]*Photo, error) {
	return r.list(ctx, `tags @> $1 AND owner = $2`, pq.StringArray{tag}, owner)
}

func (r *repository) ListUnthumbnailedIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM photos WHERE thumbnailed = FALSE ORDER BY id`
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids, query)
	return ids, err
}

// tagsParam keeps the NOT NULL column satisfied for photos without tags
func tagsParam(tags pq.StringArray) pq.StringArray {
	if tags == nil {
		return pq.StringArray{}
	}
	return tags
}
