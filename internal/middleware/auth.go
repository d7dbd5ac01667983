package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/photoshare/photoshare-web/internal/pkg/jwt"
	"github.com/photoshare/photoshare-web/internal/pkg/logger"
)

type contextKey string

const UserKey contextKey = "user"

// SessionUser is the signed-in user attached to a request
type SessionUser struct {
	ID       string
	Nickname string
	Email    string
}

// Session returns middleware that reads the session cookie and attaches
// the user to the request context. Requests without a valid session pass
// through anonymously; pages decide on their own whether to redirect.
func Session(jwtService *jwt.Service, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := jwtService.ValidateSessionToken(cookie.Value)
			if err != nil {
				if !errors.Is(err, jwt.ErrExpiredToken) {
					logger.FromContext(r.Context()).Debug().Err(err).Msg("Ignoring invalid session cookie")
				}
				next.ServeHTTP(w, r)
				return
			}

			u := &SessionUser{ID: claims.UserID(), Nickname: claims.Nickname, Email: claims.Email}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser returns a context carrying the user
func WithUser(ctx context.Context, u *SessionUser) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// GetUser extracts the signed-in user from context, nil if anonymous
func GetUser(ctx context.Context) *SessionUser {
	if u, ok := ctx.Value(UserKey).(*SessionUser); ok {
		return u
	}
	return nil
}

// GetUserID extracts user ID from context, empty if anonymous
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}
