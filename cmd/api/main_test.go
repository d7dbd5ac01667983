package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoshare/photoshare-web/internal/config"
	"github.com/photoshare/photoshare-web/internal/domain/auth"
	"github.com/photoshare/photoshare-web/internal/domain/photo"
	"github.com/photoshare/photoshare-web/internal/domain/realtime"
	"github.com/photoshare/photoshare-web/internal/pkg/imaging"
	"github.com/photoshare/photoshare-web/internal/pkg/jwt"
	"github.com/photoshare/photoshare-web/internal/pkg/ratelimit"
	"github.com/photoshare/photoshare-web/internal/pkg/render"
	"github.com/photoshare/photoshare-web/internal/pkg/storage"
	"github.com/photoshare/photoshare-web/internal/pkg/taskqueue"
)

// emptyRepository is a photo store with nothing in it
type emptyRepository struct{}

func (emptyRepository) Create(ctx context.Context, p *photo.Photo) error { return nil }
func (emptyRepository) GetByID(ctx context.Context, id int64) (*photo.Photo, error) {
	return nil, nil
}
func (emptyRepository) Update(ctx context.Context, p *photo.Photo) error { return photo.ErrPhotoNotFound }
func (emptyRepository) ListByOwner(ctx context.Context, owner string) ([]*photo.Photo, error) {
	return nil, nil
}
func (emptyRepository) ListPublic(ctx context.Context) ([]*photo.Photo, error) { return nil, nil }
func (emptyRepository) ListPublicOrOwned(ctx context.Context, owner string) ([]*photo.Photo, error) {
	return nil, nil
}
func (emptyRepository) ListPublicByTag(ctx context.Context, tag string) ([]*photo.Photo, error) {
	return nil, nil
}
func (emptyRepository) ListOwnedByTag(ctx context.Context, owner, tag string) ([]*photo.Photo, error) {
	return nil, nil
}
func (emptyRepository) ListUnthumbnailedIDs(ctx context.Context) ([]int64, error) { return nil, nil }

func testRouter(t *testing.T, devLogin bool) http.Handler {
	t.Helper()
	cfg := &config.Config{
		SessionCookie:  "photoshare_session",
		AuthLoginURL:   "/_auth/login",
		AuthLogoutURL:  "/_auth/logout",
		TaskSecret:     "s3cret",
		RateLimitRPS:   100,
		RateLimitBurst: 100,
	}

	renderer, err := render.New()
	require.NoError(t, err)
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	queue := taskqueue.NewMemoryQueue()
	t.Cleanup(queue.Close)
	hub := realtime.NewHub(nil)

	jwtSvc := jwt.NewService("secret", time.Hour)
	identity := auth.NewSessionIdentity(cfg.AuthLoginURL, cfg.AuthLogoutURL)
	svc := photo.NewService(emptyRepository{}, blobs, imaging.NewThumbnailer(imaging.DefaultSize), queue, hub)

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)
	t.Cleanup(limiter.Stop)

	deps := routerDeps{
		JWT:      jwtSvc,
		Photo:    photo.NewHandler(svc, identity, renderer, 1<<20),
		Realtime: realtime.NewHandler(hub, nil),
		Limiter:  limiter,
	}
	if devLogin {
		deps.Auth = auth.NewHandler(auth.NewService(jwtSvc), identity, renderer, auth.CookieConfig{Name: cfg.SessionCookie})
	}
	return newRouter(cfg, deps)
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := get(testRouter(t, false), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_UnknownPathFallsBackToIndex(t *testing.T) {
	rec := get(testRouter(t, false), "/anything/else")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Public photos")
}

func TestRouter_DevLoginMounted(t *testing.T) {
	rec := get(testRouter(t, true), "/_auth/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="nickname"`)

	// Without the development provider the path is just another page
	rec = get(testRouter(t, false), "/_auth/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `name="nickname"`)
}

func TestRouter_TaskEndpointsNeedSecret(t *testing.T) {
	router := testRouter(t, false)

	rec := get(router, "/cron_thumbnail")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/cron_thumbnail", nil)
	req.Header.Set("X-Task-Secret", "s3cret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enqueued":0`)
}

func TestNewBlobStorage_UnknownDriver(t *testing.T) {
	_, err := newBlobStorage(context.Background(), &config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)

	s, err := newBlobStorage(context.Background(), &config.Config{StorageDriver: "local", StorageLocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, s)
}
