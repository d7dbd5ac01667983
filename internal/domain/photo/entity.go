package photo

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Photo is an uploaded picture with its metadata.
// The original bytes live in the blob store under BlobKey.
type Photo struct {
	ID        int64          `db:"id"`
	Caption   string         `db:"caption"`
	CreatedAt time.Time      `db:"created_at"`
	Tags      pq.StringArray `db:"tags"`
	Owner     string         `db:"owner"`      // user id
	OwnerName string         `db:"owner_name"` // nickname at upload time
	BlobKey   string         `db:"blob_key"`
	Private   bool           `db:"private"`

	ContentType string `db:"content_type"`

	// Thumbnail is nil until generated; Thumbnailed is set together with it
	Thumbnail     []byte `db:"thumbnail"`
	ThumbnailType string `db:"thumbnail_type"`
	Thumbnailed   bool   `db:"thumbnailed"`
	Placeholder   string `db:"placeholder"`

	Comments Comments `db:"comments"`
}

// ThumbnailContentType returns the MIME type thumbnail bytes are served with
func (p *Photo) ThumbnailContentType() string {
	if p.ThumbnailType != "" {
		return p.ThumbnailType
	}
	return p.ContentType
}

// Comment is embedded in its photo and has no identity of its own
type Comment struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
}

// Comments is stored as a JSONB array in insertion order
type Comments []Comment

// Value implements driver.Valuer so sqlx can serialize Comments → JSONB.
func (c Comments) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal photo comments: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner so sqlx can deserialize JSONB → Comments.
func (c *Comments) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("unexpected type for comments: %T", src)
	}
	return json.Unmarshal(b, c)
}
