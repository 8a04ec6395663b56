package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/services"
	pkghttp "github.com/ewhitfield/storefront/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints (10 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// This is an in-memory first line of defense; the durable per-endpoint
// limiter below survives restarts and is shared across instances.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limit exceeded"}`))
		}),
	)
}

// DurableRateLimit enforces the store-backed fixed-window request quota for a
// named endpoint. A rejected request gets 429; an unreachable store gets 503
// rather than a free pass.
func DurableRateLimit(limiter *services.RateLimiter, endpoint string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := MetaFromContext(r.Context())

			allowed, err := limiter.Allow(r.Context(), meta.ClientIP, endpoint)
			if err != nil {
				if errors.Is(err, models.ErrStoreUnavailable) {
					pkghttp.WriteServiceUnavailable(w, "Please try again later")
					return
				}
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}
			if !allowed {
				pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
