package photo

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the photo site router. Paths that match nothing render the index.
// rateLimit guards uploads and comments; taskAuth guards queue and cron targets.
func (h *Handler) Routes(rateLimit, taskAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Index)
	r.Get("/user_home", h.UserHome)
	r.Get("/all_photos", h.AllPhotos)
	r.Get("/search/*", h.Search)
	r.Get("/photo_details/{id:[0-9]+}", h.PhotoDetails)
	r.Get("/new_photo", h.NewPhoto)
	r.Get("/post_upload", h.PostUpload)
	r.Get("/photo/{blobKey}", h.Download)
	r.Get("/thumbnail/{id:[0-9]+}", h.Thumbnail)

	r.With(rateLimit).Post("/upload_photo", h.UploadPhoto)
	r.With(rateLimit).Post("/add_comment", h.AddComment)

	r.Group(func(r chi.Router) {
		r.Use(taskAuth)
		r.Post("/generate_thumbnail", h.GenerateThumbnail)
		r.Get("/cron_thumbnail", h.CronThumbnail)
	})

	r.NotFound(h.Index)

	return r
}
