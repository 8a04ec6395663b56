package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ewhitfield/storefront/internal/auth"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/services"
	pkghttp "github.com/ewhitfield/storefront/pkg/http"
)

// CSRFProtection verifies the single-use CSRF token on every state-changing
// request. Tokens arrive in the X-CSRF-Token header or, for plain form
// posts, in the csrf_token field. Verification consumes the token; a
// replayed value is a 403. An unreachable store is a 503, never a pass.
func CSRFProtection(csrf *services.CsrfManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get("X-CSRF-Token")
			if token == "" {
				token = r.PostFormValue("csrf_token")
			}

			var userID *string
			if claims := auth.SessionFromContext(r.Context()); claims != nil {
				userID = &claims.UserID
			}

			meta := MetaFromContext(r.Context())

			err := csrf.Verify(r.Context(), token, userID, meta.ClientIP)
			if err != nil {
				if errors.Is(err, models.ErrStoreUnavailable) {
					pkghttp.WriteServiceUnavailable(w, "Please try again later")
					return
				}
				logger.Warn("csrf verification rejected request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				pkghttp.WriteForbidden(w, "Invalid or missing CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
