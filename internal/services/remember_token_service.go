package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewhitfield/storefront/internal/database"
	"github.com/ewhitfield/storefront/internal/models"
)

// RememberTokenRepository defines the interface for remember-me persistence
type RememberTokenRepository interface {
	Upsert(ctx context.Context, token *models.RememberToken) error
	GetByHash(ctx context.Context, tokenHash string) (*models.RememberToken, error)
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// RememberTokenService issues and resolves long-lived remember-me tokens.
// The store only ever sees a keyed hash of the raw value; a leaked table
// cannot be replayed as cookies.
type RememberTokenService struct {
	repo     RememberTokenRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewRememberTokenService(repo RememberTokenRepository, secret string, tokenTTL time.Duration, logger *slog.Logger) *RememberTokenService {
	return &RememberTokenService{
		repo:     repo,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Issue mints a fresh raw token for the principal, replacing any prior one.
// The raw value is returned exactly once; callers put it in the cookie.
func (s *RememberTokenService) Issue(ctx context.Context, userID string) (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate remember token: %w", err)
	}
	rawToken := base64.RawURLEncoding.EncodeToString(randomBytes)

	token := &models.RememberToken{
		UserID:    userID,
		TokenHash: s.hash(rawToken),
		ExpiresAt: time.Now().Add(s.tokenTTL),
	}

	err := database.WithRetry(ctx, func(ctx context.Context) error {
		return s.repo.Upsert(ctx, token)
	})
	if err != nil {
		s.logger.Error("failed to store remember token", slog.Any("error", err))
		return "", models.ErrStoreUnavailable
	}

	return rawToken, nil
}

// Resolve maps a raw cookie value back to a principal id. Expired or unknown
// tokens return ErrUnauthorized. Resolution does not extend expiry: a leaked
// cookie's blast radius ends at the original deadline.
func (s *RememberTokenService) Resolve(ctx context.Context, rawToken string) (string, error) {
	if rawToken == "" {
		return "", models.ErrUnauthorized
	}

	var token *models.RememberToken
	err := database.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		token, err = s.repo.GetByHash(ctx, s.hash(rawToken))
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		return "", models.ErrUnauthorized
	}
	if err != nil {
		s.logger.Error("failed to resolve remember token", slog.Any("error", err))
		return "", models.ErrStoreUnavailable
	}

	return token.UserID, nil
}

// RevokeAll deletes every remember token for a principal (logout)
func (s *RememberTokenService) RevokeAll(ctx context.Context, userID string) error {
	err := database.WithRetry(ctx, func(ctx context.Context) error {
		return s.repo.DeleteByUserID(ctx, userID)
	})
	if err != nil {
		s.logger.Error("failed to revoke remember tokens",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrStoreUnavailable
	}
	return nil
}

// Prune removes expired tokens
func (s *RememberTokenService) Prune(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

// hash computes the keyed token hash. HMAC rather than a bare digest so the
// stored value is useless without the server secret.
func (s *RememberTokenService) hash(rawToken string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(rawToken))
	return hex.EncodeToString(mac.Sum(nil))
}
