package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/ewhitfield/storefront/internal/models"
	pkghttp "github.com/ewhitfield/storefront/pkg/http"
)

type contextKey string

const requestMetaKey contextKey = "request_meta"

// RequestMeta resolves the client IP and request timestamp once, up front,
// and carries them through the context. Downstream components take the meta
// as an argument; nothing reads ambient request state.
func RequestMeta(ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := models.RequestMeta{
				ClientIP:   pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent:  r.Header.Get("User-Agent"),
				ReceivedAt: time.Now(),
			}

			ctx := context.WithValue(r.Context(), requestMetaKey, meta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetaFromContext returns the request meta set by RequestMeta. Falls back
// to a zero-value meta with the current time if the middleware did not run.
func MetaFromContext(ctx context.Context) models.RequestMeta {
	if meta, ok := ctx.Value(requestMetaKey).(models.RequestMeta); ok {
		return meta
	}
	return models.RequestMeta{ClientIP: "unknown", ReceivedAt: time.Now()}
}
