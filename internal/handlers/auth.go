package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ewhitfield/storefront/internal/auth"
	"github.com/ewhitfield/storefront/internal/middleware"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/services"
	pkgauth "github.com/ewhitfield/storefront/pkg/auth"
	pkghttp "github.com/ewhitfield/storefront/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error)
	RestoreSession(ctx context.Context, rawToken string, meta models.RequestMeta) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string, meta models.RequestMeta) error
}

// RegistrationServiceInterface defines the interface for account creation
type RegistrationServiceInterface interface {
	Register(ctx context.Context, email, username, password string, meta models.RequestMeta) (*models.User, error)
}

// CsrfIssuer mints single-use CSRF tokens for the token endpoint
type CsrfIssuer interface {
	Issue(ctx context.Context, userID *string) (string, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	registration RegistrationServiceInterface
	csrf         CsrfIssuer
	cookieConfig auth.CookieConfig
	rememberTTL  time.Duration
	csrfTTL      time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	service AuthServiceInterface,
	registration RegistrationServiceInterface,
	csrf CsrfIssuer,
	cookieConfig auth.CookieConfig,
	rememberTTL, csrfTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		registration: registration,
		csrf:         csrf,
		cookieConfig: cookieConfig,
		rememberTTL:  rememberTTL,
		csrfTTL:      csrfTTL,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=1,max=255"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required"`
}

// UserResponse represents a principal in HTTP responses
type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse represents a successful authentication
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// CsrfTokenResponse carries a freshly minted CSRF token
type CsrfTokenResponse struct {
	Token string `json:"csrf_token"`
}

func userToResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := middleware.MetaFromContext(r.Context())

	result, err := h.service.Login(r.Context(), req.Identifier, req.Password, req.RememberMe, meta)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}

	if result.RememberToken != "" {
		auth.SetRememberCookie(w, result.RememberToken, h.rememberTTL, h.cookieConfig)
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: result.SessionToken,
		User:  userToResponse(result.User),
	})
}

// writeLoginError flattens the authentication failure taxonomy into
// enumeration-safe HTTP responses. Lockout and rate limiting are the only
// states the caller is allowed to distinguish.
func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	if locked, ok := models.AsAccountLocked(err); ok {
		until := locked.Until.UTC().Format(time.RFC3339)
		pkghttp.WriteLocked(w, "Account temporarily locked until "+until)
		return
	}

	switch {
	case errors.Is(err, models.ErrRateLimited):
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrAccountDisabled):
		// Generic response for all credential and account status failures
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Please try again later")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := middleware.MetaFromContext(r.Context())

	user, err := h.registration.Register(r.Context(), req.Email, req.Username, req.Password, meta)
	if err != nil {
		var policyErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &policyErr):
			pkghttp.WriteBadRequest(w, policyErr.Error())
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid registration details")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "An account with that email or username already exists")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Please try again later")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, userToResponse(user))
}

// Logout revokes the caller's remember tokens and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := auth.SessionFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	meta := middleware.MetaFromContext(r.Context())

	if err := h.service.Logout(r.Context(), claims.UserID, meta); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.ClearRememberCookie(w, h.cookieConfig)
	auth.ClearCsrfCookie(w, h.cookieConfig)

	w.WriteHeader(http.StatusNoContent)
}

// Restore exchanges a remember-me cookie for a fresh session token
func (h *AuthHandler) Restore(w http.ResponseWriter, r *http.Request) {
	rawToken, err := auth.GetRememberCookie(r)
	if err != nil || rawToken == "" {
		pkghttp.WriteUnauthorized(w, "No remember token")
		return
	}

	meta := middleware.MetaFromContext(r.Context())

	result, err := h.service.RestoreSession(r.Context(), rawToken, meta)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		case errors.Is(err, models.ErrUnauthorized),
			errors.Is(err, models.ErrAccountDisabled):
			// A dead token is useless; make the browser drop it
			auth.ClearRememberCookie(w, h.cookieConfig)
			pkghttp.WriteUnauthorized(w, "Session restore failed")
		case errors.Is(err, models.ErrStoreUnavailable):
			pkghttp.WriteServiceUnavailable(w, "Please try again later")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: result.SessionToken,
		User:  userToResponse(result.User),
	})
}

// CsrfToken mints a single-use CSRF token bound to the caller's session,
// or an anonymous one for pre-login forms
func (h *AuthHandler) CsrfToken(w http.ResponseWriter, r *http.Request) {
	var userID *string
	if claims := auth.SessionFromContext(r.Context()); claims != nil {
		userID = &claims.UserID
	}

	token, err := h.csrf.Issue(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			pkghttp.WriteServiceUnavailable(w, "Please try again later")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetCsrfCookie(w, token, h.csrfTTL, h.cookieConfig)

	writeJSON(w, http.StatusOK, CsrfTokenResponse{Token: token})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
