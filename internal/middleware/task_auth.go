package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/response"
)

// TaskSecretHeader carries the shared secret on task queue and cron calls
const TaskSecretHeader = "X-Task-Secret"

// TaskAuth guards task endpoints with a shared secret.
// An empty secret leaves the endpoints open.
func TaskAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(TaskSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.FromContext(r.Context()).Warn().
					Str("path", r.URL.Path).
					Str("ip", getClientIP(r)).
					Msg("Rejected task call without valid secret")
				response.Unauthorized(w, "Invalid task secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
