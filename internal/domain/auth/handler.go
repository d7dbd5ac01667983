package auth

import (
	"net/http"
	"time"

	"github.com/photoshare/photoshare-web/internal/pkg/errorhandler"
	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/validator"
)

// Renderer writes an HTML page
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data any) error
}

// CookieConfig describes the session cookie
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler serves the development identity provider
type Handler struct {
	service  *Service
	identity Identity
	render   Renderer
	cookie   CookieConfig
}

// NewHandler creates auth handler
func NewHandler(service *Service, identity Identity, render Renderer, cookie CookieConfig) *Handler {
	return &Handler{service: service, identity: identity, render: render, cookie: cookie}
}

// LoginPage handles GET /_auth/login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	dest := SafeContinue(r.URL.Query().Get("continue"))

	if u := h.identity.CurrentUser(r); u != nil {
		http.Redirect(w, r, dest, http.StatusFound)
		return
	}

	h.renderLogin(w, r, http.StatusOK, dest, nil)
}

// Login handles POST /_auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "/", map[string]string{"_": "Invalid form"})
		return
	}

	req := LoginRequest{
		Nickname: r.PostForm.Get("nickname"),
		Email:    r.PostForm.Get("email"),
		Continue: r.PostForm.Get("continue"),
	}
	dest := SafeContinue(req.Continue)

	if errs := validator.Validate(&req); errs != nil {
		h.renderLogin(w, r, http.StatusBadRequest, dest, errs)
		return
	}

	session, err := h.service.SignIn(req.Nickname, req.Email)
	if err != nil {
		if err == ErrNicknameRequired {
			h.renderLogin(w, r, http.StatusBadRequest, dest, map[string]string{"nickname": "This field is required"})
			return
		}
		errorhandler.Handle(r.Context(), w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	logger.FromContext(r.Context()).Info().
		Str("user_id", session.User.ID).
		Str("nickname", session.User.Nickname).
		Msg("User signed in")

	http.Redirect(w, r, dest, http.StatusFound)
}

// Logout handles GET /_auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, SafeContinue(r.URL.Query().Get("continue")), http.StatusFound)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, dest string, errs map[string]string) {
	view := LoginView{
		LoginURL:  r.URL.Path,
		LogoutURL: h.identity.LogoutURL("/"),
		Continue:  dest,
		Errors:    errs,
	}
	if err := h.render.Render(w, status, "login", view); err != nil {
		errorhandler.Handle(r.Context(), w, err)
	}
}
