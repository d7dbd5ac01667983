package auth

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the development identity provider router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.LoginPage)
	r.Post("/login", h.Login)
	r.Get("/logout", h.Logout)

	return r
}
