package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/photoshare/photoshare-web/internal/middleware"
)

// Identity resolves the signed-in user and the provider's sign-in/out URLs
type Identity interface {
	// CurrentUser returns nil for anonymous requests.
	CurrentUser(r *http.Request) *User
	// LoginURL sends the browser to sign in and come back to dest.
	LoginURL(dest string) string
	// LogoutURL signs out and lands on dest.
	LogoutURL(dest string) string
}

// SessionIdentity reads the user the Session middleware attached to the request
type SessionIdentity struct {
	loginURL  string
	logoutURL string
}

// NewSessionIdentity creates the adapter for the given provider endpoints
func NewSessionIdentity(loginURL, logoutURL string) *SessionIdentity {
	return &SessionIdentity{loginURL: loginURL, logoutURL: logoutURL}
}

func (s *SessionIdentity) CurrentUser(r *http.Request) *User {
	u := middleware.GetUser(r.Context())
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Nickname: u.Nickname, Email: u.Email}
}

func (s *SessionIdentity) LoginURL(dest string) string {
	return withContinue(s.loginURL, dest)
}

func (s *SessionIdentity) LogoutURL(dest string) string {
	return withContinue(s.logoutURL, dest)
}

func withContinue(base, dest string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "continue=" + url.QueryEscape(dest)
}

// SafeContinue keeps redirects on this site: only absolute paths are accepted
func SafeContinue(dest string) string {
	if dest == "" || !strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "//") || strings.HasPrefix(dest, "/\\") {
		return "/"
	}
	return dest
}
