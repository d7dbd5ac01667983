package photo

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/photoshare/photoshare-web/internal/domain/auth"
	"github.com/photoshare/photoshare-web/internal/pkg/apperror"
	"github.com/photoshare/photoshare-web/internal/pkg/errorhandler"
	"github.com/photoshare/photoshare-web/internal/pkg/response"
	"github.com/photoshare/photoshare-web/internal/pkg/validator"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk
const multipartMemory = 8 << 20

// Renderer writes an HTML page
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data any) error
}

// Handler handles photo HTTP requests
type Handler struct {
	service        *Service
	identity       auth.Identity
	render         Renderer
	maxUploadBytes int64
}

// NewHandler creates photo handler
func NewHandler(service *Service, identity auth.Identity, render Renderer, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		identity:       identity,
		render:         render,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) page(r *http.Request, u *auth.User) PageView {
	view := PageView{
		LoginURL:  h.identity.LoginURL(r.URL.RequestURI()),
		LogoutURL: h.identity.LogoutURL("/"),
	}
	if u != nil {
		view.CurrentUser = u.Nickname
	}
	return view
}

// requireLogin redirects anonymous viewers to sign in and reports whether to go on
func (h *Handler) requireLogin(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	u := h.identity.CurrentUser(r)
	if u == nil {
		http.Redirect(w, r, h.identity.LoginURL(r.URL.RequestURI()), http.StatusFound)
		return nil, false
	}
	return u, true
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := h.render.Render(w, http.StatusOK, name, data); err != nil {
		errorhandler.Handle(r.Context(), w, err)
	}
}

// Index handles GET / and every unmatched path
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	u := h.identity.CurrentUser(r)

	photos, err := h.service.Home(r.Context(), u)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	h.renderPage(w, r, "index", ListView{PageView: h.page(r, u), Photos: photos})
}

// UserHome handles GET /user_home
func (h *Handler) UserHome(w http.ResponseWriter, r *http.Request) {
	u := h.identity.CurrentUser(r)
	if u == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	photos, err := h.service.UserHome(r.Context(), u)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	h.renderPage(w, r, "user_home", ListView{PageView: h.page(r, u), Photos: photos})
}

// AllPhotos handles GET /all_photos
func (h *Handler) AllPhotos(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireLogin(w, r)
	if !ok {
		return
	}

	photos, err := h.service.AllPhotos(r.Context(), u)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	h.renderPage(w, r, "all_photos", ListView{PageView: h.page(r, u), Photos: photos})
}

// Search handles GET /search/{tag}. The tag is the rest of the path and may be empty.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	u := h.identity.CurrentUser(r)
	tag := strings.TrimPrefix(r.URL.Path, "/search/")

	photos, err := h.service.Search(r.Context(), u, tag)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	h.renderPage(w, r, "search_results", SearchView{PageView: h.page(r, u), Photos: photos, SearchTag: tag})
}

// PhotoDetails handles GET /photo_details/{id}
func (h *Handler) PhotoDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		// Digits that overflow can't name a photo
		errorhandler.Handle(r.Context(), w, apperror.NotFound(ErrPhotoNotFound))
		return
	}

	photo, err := h.service.Get(r.Context(), id)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	u := h.identity.CurrentUser(r)
	h.renderPage(w, r, "photo_details", DetailsView{PageView: h.page(r, u), Photo: photo})
}

// NewPhoto handles GET /new_photo
func (h *Handler) NewPhoto(w http.ResponseWriter, r *http.Request) {
	u, ok := h.requireLogin(w, r)
	if !ok {
		return
	}

	h.renderPage(w, r, "new_photo", NewPhotoView{PageView: h.page(r, u), UploadURL: "/upload_photo"})
}

// PostUpload handles GET /post_upload
func (h *Handler) PostUpload(w http.ResponseWriter, r *http.Request) {
	u := h.identity.CurrentUser(r)
	h.renderPage(w, r, "post_upload", ListView{PageView: h.page(r, u)})
}

// UploadPhoto handles POST /upload_photo
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	u := h.identity.CurrentUser(r)
	if u == nil {
		errorhandler.Handle(r.Context(), w, apperror.Unauthorized(ErrLoginRequired))
		return
	}

	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			errorhandler.Handle(r.Context(), w, apperror.InvalidInput(ErrUploadTooLarge))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorhandler.Handle(r.Context(), w, apperror.InvalidInput(ErrUploadTooLarge))
			return
		}
		errorhandler.Handle(r.Context(), w, apperror.InvalidInput(fmt.Errorf("invalid multipart form: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("photo")
	if err != nil {
		errorhandler.Handle(r.Context(), w, apperror.InvalidInput(ErrMissingPhotoFile))
		return
	}
	defer file.Close()

	_, err = h.service.Upload(r.Context(), u, &UploadInput{
		Caption:     r.FormValue("caption"),
		Tags:        r.FormValue("tags"),
		Private:     r.FormValue("private"),
		ContentType: header.Header.Get("Content-Type"),
		File:        file,
	})
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	http.Redirect(w, r, "/post_upload", http.StatusFound)
}

// Download handles GET /photo/{blobKey}
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	obj, err := h.service.OpenOriginal(r.Context(), chi.URLParam(r, "blobKey"))
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		errorhandler.LogExternalServiceError(r.Context(), "blob_store", "stream_photo", err)
	}
}

// Thumbnail handles GET /thumbnail/{id}
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		errorhandler.Handle(r.Context(), w, apperror.NotFound(ErrPhotoNotFound))
		return
	}

	data, contentType, err := h.service.Thumbnail(r.Context(), id)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// AddComment handles POST /add_comment
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	u := h.identity.CurrentUser(r)
	if u == nil {
		errorhandler.Handle(r.Context(), w, apperror.Unauthorized(ErrLoginRequired))
		return
	}

	if err := r.ParseForm(); err != nil {
		errorhandler.Handle(r.Context(), w, apperror.InvalidInput(err))
		return
	}

	req := AddCommentRequest{
		PhotoKey: r.PostForm.Get("photo_key"),
		Content:  r.PostForm.Get("content"),
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	id, err := ParseID(req.PhotoKey)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	if _, err := h.service.AddComment(r.Context(), u, id, req.Content); err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/photo_details/%d", id), http.StatusFound)
}

// GenerateThumbnail handles POST /generate_thumbnail (task queue target)
func (h *Handler) GenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errorhandler.Handle(r.Context(), w, apperror.InvalidInput(err))
		return
	}

	req := GenerateThumbnailRequest{Key: r.PostForm.Get("key")}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.HandleValidation(r.Context(), w, errs)
		return
	}

	id, err := ParseID(req.Key)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	photo, err := h.service.GenerateThumbnail(r.Context(), id)
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	response.OK(w, ThumbnailResponse{
		PhotoID:     photo.ID,
		Thumbnailed: photo.Thumbnailed,
		Placeholder: photo.Placeholder,
	})
}

// CronThumbnail handles GET /cron_thumbnail
func (h *Handler) CronThumbnail(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.EnqueueThumbnails(r.Context())
	if err != nil {
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	response.OK(w, CronResponse{Enqueued: n})
}
