package middleware

import (
	"net/http"

	"github.com/photoshare/photoshare-web/internal/pkg/logger"
	"github.com/photoshare/photoshare-web/internal/pkg/ratelimit"
	"github.com/photoshare/photoshare-web/internal/pkg/response"
)

// RateLimit rejects requests with 429 once the client IP runs out of tokens
func RateLimit(limiter *ratelimit.KeyedRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r)

			if !limiter.Allow(key) {
				logger.FromContext(r.Context()).Warn().
					Str("ip", key).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
				response.TooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
