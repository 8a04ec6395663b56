package auth

import (
	"fmt"
	"time"

	"github.com/ewhitfield/storefront/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by a storefront session token
type SessionClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates the signed session identifiers handed
// out on successful login. Stateless: all it needs is the signing secret.
type SessionManager struct {
	secret     string
	sessionTTL time.Duration
}

func NewSessionManager(secret string, sessionTTL time.Duration) *SessionManager {
	return &SessionManager{
		secret:     secret,
		sessionTTL: sessionTTL,
	}
}

// Issue creates a fresh session token for a principal
func (sm *SessionManager) Issue(userID, role string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(sm.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies a session token and returns its claims
func (sm *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(sm.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid session token: missing subject")
	}

	return claims, nil
}
