package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewhitfield/storefront/internal/auth"
	"github.com/ewhitfield/storefront/internal/background"
	"github.com/ewhitfield/storefront/internal/config"
	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/handlers"
	middlewareCustom "github.com/ewhitfield/storefront/internal/middleware"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/repositories"
	"github.com/ewhitfield/storefront/internal/routes"
	"github.com/ewhitfield/storefront/internal/services"
	pkgauth "github.com/ewhitfield/storefront/pkg/auth"
	pkghttp "github.com/ewhitfield/storefront/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)
	csrfRepo := repositories.NewCsrfTokenRepository(db)
	rememberRepo := repositories.NewRememberTokenRepository(db)
	eventRepo := repositories.NewSecurityEventRepository(db)

	// Audit first: every other security service reports through it
	auditService := services.NewAuditService(eventRepo, logger)

	ledger := services.NewAttemptLedger(attemptRepo, services.LedgerConfig{
		MaxAttempts:     cfg.Security.MaxLoginAttempts,
		LockoutDuration: cfg.Security.LockoutDuration,
		Retention:       cfg.Security.AttemptRetention,
	}, logger)

	limiter := services.NewRateLimiter(rateLimitRepo, auditService, services.RateLimitConfig{
		Window:      cfg.Security.RateLimitWindow,
		MaxRequests: cfg.Security.RateLimitMaxRequests,
	}, logger)

	csrfManager := services.NewCsrfManager(csrfRepo, auditService, cfg.Security.CsrfTokenTTL, logger)

	rememberService := services.NewRememberTokenService(
		rememberRepo,
		cfg.Security.SessionSecret,
		cfg.Security.RememberTokenTTL,
		logger,
	)

	sessionManager := auth.NewSessionManager(cfg.Security.SessionSecret, cfg.Security.SessionTTL)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Security.TimingBaseDelayMs,
		RandomDelayMs:  cfg.Security.TimingRandomDelayMs,
		DelayOnSuccess: cfg.Security.TimingDelayOnSuccess,
	})

	authService := services.NewAuthService(
		userRepo,
		ledger,
		limiter,
		rememberService,
		auditService,
		sessionManager,
		timingDelay,
		services.AuthConfig{
			MaxAttempts:     cfg.Security.MaxLoginAttempts,
			LockoutDuration: cfg.Security.LockoutDuration,
		},
		logger,
	)

	userService := services.NewUserService(userRepo, auditService, pkgauth.Policy{
		MinLength:      cfg.Security.PasswordMinLength,
		RequireSpecial: cfg.Security.PasswordRequireSpecial,
	}, logger)

	cleanupManager := background.NewCleanupManager(
		ledger,
		limiter,
		csrfManager,
		rememberService,
		auditService,
		logger,
		cfg.Security.CleanupInterval,
		cfg.Security.AuditRetentionDays,
	)

	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Security.CookieDomain,
		Secure:   cfg.Security.CookieSecure,
		SameSite: cfg.Security.CookieSameSite,
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(
		authService,
		userService,
		csrfManager,
		cookieConfig,
		cfg.Security.RememberTokenTTL,
		cfg.Security.CsrfTokenTTL,
	)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.RequestMeta(ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, auditHandler, sessionManager, limiter, csrfManager, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByIdentifier(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        adminEmail,
		Username:     "admin",
		PasswordHash: hashedPassword,
		Role:         "admin",
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
