package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ewhitfield/storefront/internal/auth"
	"github.com/ewhitfield/storefront/internal/handlers"
	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuthService struct {
	LoginFunc          func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error)
	RestoreSessionFunc func(ctx context.Context, rawToken string, meta models.RequestMeta) (*services.LoginResult, error)
	LogoutFunc         func(ctx context.Context, userID string, meta models.RequestMeta) error
}

func (m *mockAuthService) Login(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, identifier, secret, rememberMe, meta)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *mockAuthService) RestoreSession(ctx context.Context, rawToken string, meta models.RequestMeta) (*services.LoginResult, error) {
	if m.RestoreSessionFunc != nil {
		return m.RestoreSessionFunc(ctx, rawToken, meta)
	}
	return nil, models.ErrUnauthorized
}

func (m *mockAuthService) Logout(ctx context.Context, userID string, meta models.RequestMeta) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, userID, meta)
	}
	return nil
}

type mockRegistrationService struct {
	RegisterFunc func(ctx context.Context, email, username, password string, meta models.RequestMeta) (*models.User, error)
}

func (m *mockRegistrationService) Register(ctx context.Context, email, username, password string, meta models.RequestMeta) (*models.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, username, password, meta)
	}
	return nil, models.ErrInternalServer
}

type mockCsrfIssuer struct {
	IssueFunc func(ctx context.Context, userID *string) (string, error)
}

func (m *mockCsrfIssuer) Issue(ctx context.Context, userID *string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, userID)
	}
	return "test-csrf-token", nil
}

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New().String(),
		Email:    "shopper@example.com",
		Username: "shopper",
		Role:     "customer",
		Status:   models.UserStatusActive,
	}
}

func newTestAuthHandler(service *mockAuthService, registration *mockRegistrationService, csrf *mockCsrfIssuer) *handlers.AuthHandler {
	return handlers.NewAuthHandler(
		service,
		registration,
		csrf,
		auth.CookieConfig{SameSite: "lax"},
		30*24*time.Hour,
		15*time.Minute,
	)
}

func loginBody(t *testing.T, identifier, password string, remember bool) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(handlers.LoginRequest{
		Identifier: identifier,
		Password:   password,
		RememberMe: remember,
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandlerLogin_Success(t *testing.T) {
	user := testUser()
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
			return &services.LoginResult{User: user, SessionToken: "session-jwt"}, nil
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "secret#pass", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "session-jwt", resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Nil(t, findCookie(rec.Result(), auth.RememberCookieName))
}

func TestAuthHandlerLogin_RememberMeSetsCookie(t *testing.T) {
	user := testUser()
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
			assert.True(t, rememberMe)
			return &services.LoginResult{User: user, SessionToken: "session-jwt", RememberToken: "raw-remember"}, nil
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "secret#pass", true))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	cookie := findCookie(rec.Result(), auth.RememberCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "raw-remember", cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestAuthHandlerLogin_InvalidBody(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerLogin_MissingPassword(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerLogin_InvalidCredentials(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "wrong#pass", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerLogin_DisabledLooksLikeBadCredentials(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
			return nil, models.ErrAccountDisabled
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "secret#pass", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotContains(t, resp["message"], "disabled", "account status must not leak")
}

func TestAuthHandlerLogin_Locked(t *testing.T) {
	until := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
			return nil, &models.AccountLockedError{Until: until}
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "secret#pass", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Contains(t, rec.Body.String(), "2026-09-01T12:00:00Z")
}

func TestAuthHandlerLogin_RateLimited(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
			return nil, models.ErrRateLimited
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "secret#pass", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAuthHandlerLogin_StoreUnavailable(t *testing.T) {
	service := &mockAuthService{
		LoginFunc: func(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*services.LoginResult, error) {
			return nil, models.ErrStoreUnavailable
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", loginBody(t, "shopper", "secret#pass", false))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthHandlerRegister_Success(t *testing.T) {
	user := testUser()
	registration := &mockRegistrationService{
		RegisterFunc: func(ctx context.Context, email, username, password string, meta models.RequestMeta) (*models.User, error) {
			return user, nil
		},
	}
	handler := newTestAuthHandler(&mockAuthService{}, registration, &mockCsrfIssuer{})

	body, err := json.Marshal(handlers.RegisterRequest{
		Email:    "shopper@example.com",
		Username: "shopper",
		Password: "correct-horse#battery",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp handlers.UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, user.Email, resp.Email)
}

func TestAuthHandlerRegister_Conflict(t *testing.T) {
	registration := &mockRegistrationService{
		RegisterFunc: func(ctx context.Context, email, username, password string, meta models.RequestMeta) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	handler := newTestAuthHandler(&mockAuthService{}, registration, &mockCsrfIssuer{})

	body, err := json.Marshal(handlers.RegisterRequest{
		Email:    "shopper@example.com",
		Username: "shopper",
		Password: "correct-horse#battery",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandlerRegister_BadEmail(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	body, err := json.Marshal(handlers.RegisterRequest{
		Email:    "not-an-email",
		Username: "shopper",
		Password: "correct-horse#battery",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerRestore_NoCookie(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/restore", nil)
	rec := httptest.NewRecorder()

	handler.Restore(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerRestore_Success(t *testing.T) {
	user := testUser()
	service := &mockAuthService{
		RestoreSessionFunc: func(ctx context.Context, rawToken string, meta models.RequestMeta) (*services.LoginResult, error) {
			assert.Equal(t, "raw-remember", rawToken)
			return &services.LoginResult{User: user, SessionToken: "fresh-jwt"}, nil
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/restore", nil)
	req.AddCookie(&http.Cookie{Name: auth.RememberCookieName, Value: "raw-remember"})
	rec := httptest.NewRecorder()

	handler.Restore(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "fresh-jwt", resp.Token)
}

func TestAuthHandlerRestore_RejectedClearsCookie(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/restore", nil)
	req.AddCookie(&http.Cookie{Name: auth.RememberCookieName, Value: "stale"})
	rec := httptest.NewRecorder()

	handler.Restore(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := findCookie(rec.Result(), auth.RememberCookieName)
	require.NotNil(t, cookie, "a dead remember cookie gets cleared")
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestAuthHandlerLogout_RequiresSession(t *testing.T) {
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerLogout_Success(t *testing.T) {
	userID := uuid.New().String()
	revoked := false
	service := &mockAuthService{
		LogoutFunc: func(ctx context.Context, id string, meta models.RequestMeta) error {
			revoked = true
			assert.Equal(t, userID, id)
			return nil
		},
	}
	handler := newTestAuthHandler(service, &mockRegistrationService{}, &mockCsrfIssuer{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, &auth.SessionClaims{UserID: userID, Role: "customer"})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, revoked)

	cookie := findCookie(rec.Result(), auth.RememberCookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestAuthHandlerCsrfToken(t *testing.T) {
	csrf := &mockCsrfIssuer{
		IssueFunc: func(ctx context.Context, userID *string) (string, error) {
			assert.Nil(t, userID, "anonymous request gets an unbound token")
			return "fresh-csrf-token", nil
		},
	}
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, csrf)

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	rec := httptest.NewRecorder()

	handler.CsrfToken(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.CsrfTokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "fresh-csrf-token", resp.Token)

	cookie := findCookie(rec.Result(), auth.CsrfCookieName)
	require.NotNil(t, cookie)
	assert.Equal(t, "fresh-csrf-token", cookie.Value)
	assert.False(t, cookie.HttpOnly, "the frontend must be able to read the CSRF cookie")
}

func TestAuthHandlerCsrfToken_BoundToSession(t *testing.T) {
	userID := uuid.New().String()
	csrf := &mockCsrfIssuer{
		IssueFunc: func(ctx context.Context, id *string) (string, error) {
			require.NotNil(t, id)
			assert.Equal(t, userID, *id)
			return "bound-csrf-token", nil
		},
	}
	handler := newTestAuthHandler(&mockAuthService{}, &mockRegistrationService{}, csrf)

	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	ctx := context.WithValue(req.Context(), auth.SessionContextKey, &auth.SessionClaims{UserID: userID, Role: "customer"})
	rec := httptest.NewRecorder()

	handler.CsrfToken(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
}
