package routes

import (
	"log/slog"

	"github.com/ewhitfield/storefront/internal/auth"
	"github.com/ewhitfield/storefront/internal/handlers"
	"github.com/ewhitfield/storefront/internal/middleware"
	"github.com/ewhitfield/storefront/internal/services"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	auditHandler *handlers.AuditHandler,
	sessionManager *auth.SessionManager,
	limiter *services.RateLimiter,
	csrfManager *services.CsrfManager,
	logger *slog.Logger,
) {
	// In-memory per-IP cap in front of the durable store-backed limiter
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Get("/auth/csrf", authHandler.CsrfToken)

		// Login and restore carry their own durable per-endpoint quotas
		// inside the service; CSRF still guards the POST surface.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFProtection(csrfManager, logger))

			r.Post("/auth/login", authHandler.Login)
			r.With(middleware.DurableRateLimit(limiter, "register")).Post("/auth/register", authHandler.Register)
			r.Post("/auth/restore", authHandler.Restore)
		})
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(sessionManager))
		r.Use(middleware.CSRFProtection(csrfManager, logger))

		r.Post("/auth/logout", authHandler.Logout)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))
			r.Get("/admin/audit", auditHandler.ListEvents)
		})
	})
}
