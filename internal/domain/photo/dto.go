package photo

import "io"

// UploadInput carries one multipart upload
type UploadInput struct {
	Caption     string
	Tags        string // comma separated, as typed
	Private     string // "on" when the checkbox is ticked
	ContentType string // from the multipart part, may be empty
	File        io.Reader
}

// GenerateThumbnailRequest is the task queue payload
type GenerateThumbnailRequest struct {
	Key string `form:"key" validate:"required,numeric"`
}

// AddCommentRequest for POST /add_comment
type AddCommentRequest struct {
	PhotoKey string `form:"photo_key" validate:"required,numeric"`
	Content  string `form:"content"`
}

// CronResponse for GET /cron_thumbnail
type CronResponse struct {
	Enqueued int `json:"enqueued"`
}

// ThumbnailResponse for POST /generate_thumbnail
type ThumbnailResponse struct {
	PhotoID     int64  `json:"photo_id"`
	Thumbnailed bool   `json:"thumbnailed"`
	Placeholder string `json:"placeholder,omitempty"`
}

// PageView is shared by every page: who is signed in and where to sign in or out
type PageView struct {
	CurrentUser string
	LoginURL    string
	LogoutURL   string
}

// ListView backs index, user_home and all_photos
type ListView struct {
	PageView
	Photos []*Photo
}

// SearchView backs search_results
type SearchView struct {
	PageView
	Photos    []*Photo
	SearchTag string
}

// DetailsView backs photo_details
type DetailsView struct {
	PageView
	Photo *Photo
}

// NewPhotoView backs new_photo
type NewPhotoView struct {
	PageView
	UploadURL string
}
