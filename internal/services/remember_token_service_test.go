package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/ewhitfield/storefront/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRememberTokenRepository keeps one token per principal, matching the
// real store's upsert-per-user semantics, and never returns expired rows.
type MockRememberTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RememberToken
}

func NewMockRememberTokenRepository() *MockRememberTokenRepository {
	return &MockRememberTokenRepository{
		tokens: make(map[string]*models.RememberToken),
	}
}

func (m *MockRememberTokenRepository) Upsert(ctx context.Context, token *models.RememberToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.UserID] = token
	return nil
}

func (m *MockRememberTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.RememberToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.TokenHash == tokenHash && token.ExpiresAt.After(time.Now()) {
			copied := *token
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockRememberTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
	return nil
}

func (m *MockRememberTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for userID, token := range m.tokens {
		if !token.ExpiresAt.After(time.Now()) {
			delete(m.tokens, userID)
			deleted++
		}
	}
	return deleted, nil
}

func newTestRememberService(repo services.RememberTokenRepository) *services.RememberTokenService {
	return services.NewRememberTokenService(repo, "test-remember-secret-long-enough", 30*24*time.Hour, testLogger())
}

func TestRememberTokenServiceIssueAndResolve(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)
	ctx := context.Background()

	rawToken, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rawToken)

	userID, err := service.Resolve(ctx, rawToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestRememberTokenServiceIssue_RawValueNeverStored(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)

	rawToken, err := service.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	stored := repo.tokens["user-1"]
	require.NotNil(t, stored)
	assert.NotEqual(t, rawToken, stored.TokenHash, "the store only ever sees the keyed hash")
	assert.Len(t, stored.TokenHash, 64, "hex encoded HMAC-SHA256")
}

func TestRememberTokenServiceIssue_ReplacesPriorToken(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)
	ctx := context.Background()

	first, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)

	second, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = service.Resolve(ctx, first)
	assert.ErrorIs(t, err, models.ErrUnauthorized, "re-issuing invalidates the previous token")

	userID, err := service.Resolve(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestRememberTokenServiceResolve_Unknown(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)

	_, err := service.Resolve(context.Background(), "never-issued")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRememberTokenServiceResolve_Empty(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)

	_, err := service.Resolve(context.Background(), "")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRememberTokenServiceResolve_Expired(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)
	ctx := context.Background()

	rawToken, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.tokens["user-1"].ExpiresAt = time.Now().Add(-time.Second)
	repo.mu.Unlock()

	_, err = service.Resolve(ctx, rawToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRememberTokenServiceResolve_NoSlidingExpiry(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)
	ctx := context.Background()

	rawToken, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)

	before := repo.tokens["user-1"].ExpiresAt

	_, err = service.Resolve(ctx, rawToken)
	require.NoError(t, err)

	assert.Equal(t, before, repo.tokens["user-1"].ExpiresAt, "resolution must not extend the deadline")
}

func TestRememberTokenServiceRevokeAll(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)
	ctx := context.Background()

	rawToken, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, service.RevokeAll(ctx, "user-1"))

	_, err = service.Resolve(ctx, rawToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRememberTokenServicePrune_RemovesExpired(t *testing.T) {
	repo := NewMockRememberTokenRepository()
	service := newTestRememberService(repo)
	ctx := context.Background()

	_, err := service.Issue(ctx, "user-1")
	require.NoError(t, err)
	_, err = service.Issue(ctx, "user-2")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.tokens["user-1"].ExpiresAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	deleted, err := service.Prune(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
