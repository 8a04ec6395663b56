package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ewhitfield/storefront/internal/auth"
	"github.com/ewhitfield/storefront/internal/models"
	pkgauth "github.com/ewhitfield/storefront/pkg/auth"
	"github.com/google/uuid"
)

// Endpoint names used as rate-limit subject keys
const (
	EndpointLogin   = "login"
	EndpointRestore = "restore"
)

// UserRepository defines the credential store interface the flow needs
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration) (int, error)
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// LockoutLedger is the attempt-ledger contract consumed by the flow
type LockoutLedger interface {
	RecordFailure(ctx context.Context, key models.SubjectKey) (*models.LoginAttemptRecord, error)
	IsLocked(ctx context.Context, key models.SubjectKey) (bool, *time.Time, error)
	Clear(ctx context.Context, key models.SubjectKey) error
}

// RequestLimiter is the rate-limiter contract consumed by the flow
type RequestLimiter interface {
	Allow(ctx context.Context, ip, endpoint string) (bool, error)
}

// RememberTokens is the remember-me contract consumed by the flow
type RememberTokens interface {
	Issue(ctx context.Context, userID string) (string, error)
	Resolve(ctx context.Context, rawToken string) (string, error)
	RevokeAll(ctx context.Context, userID string) error
}

// AuditRecorder is the audit-log contract consumed by the flow
type AuditRecorder interface {
	Record(ctx context.Context, eventType, severity, ipAddress string, userID *uuid.UUID, detail models.EventDetail)
}

// AuthConfig holds the lockout knobs the flow itself needs
type AuthConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// LoginResult is returned on a fully successful authentication
type LoginResult struct {
	User          *models.User
	SessionToken  string
	RememberToken string // empty unless remember was requested
}

// AuthService orchestrates the login state machine: rate limiter and
// attempt ledger first, credential store second, audit log always.
type AuthService struct {
	users    UserRepository
	ledger   LockoutLedger
	limiter  RequestLimiter
	remember RememberTokens
	audit    AuditRecorder
	sessions *auth.SessionManager
	timing   *auth.TimingDelay
	config   AuthConfig
	logger   *slog.Logger
}

func NewAuthService(
	users UserRepository,
	ledger LockoutLedger,
	limiter RequestLimiter,
	remember RememberTokens,
	audit AuditRecorder,
	sessions *auth.SessionManager,
	timing *auth.TimingDelay,
	config AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		ledger:   ledger,
		limiter:  limiter,
		remember: remember,
		audit:    audit,
		sessions: sessions,
		timing:   timing,
		config:   config,
		logger:   logger,
	}
}

// Login runs the full authentication flow for one attempt.
//
// Order matters: the rate limiter and the ledger are consulted before the
// credential store so a locked-out or rate-limited caller learns nothing
// about the account, not even through response timing.
func (s *AuthService) Login(ctx context.Context, identifier, secret string, rememberMe bool, meta models.RequestMeta) (*LoginResult, error) {
	start := time.Now()

	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || secret == "" {
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	allowed, err := s.limiter.Allow(ctx, meta.ClientIP, EndpointLogin)
	if err != nil {
		return nil, models.ErrStoreUnavailable
	}
	if !allowed {
		return nil, models.ErrRateLimited
	}

	key := models.SubjectKey{IPAddress: meta.ClientIP, Identifier: identifier}

	locked, until, err := s.ledger.IsLocked(ctx, key)
	if err != nil {
		return nil, models.ErrStoreUnavailable
	}
	if locked {
		// Deliberately no credential store access on this path
		return nil, &models.AccountLockedError{Until: *until}
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Unknown principal takes the same failure path as a wrong
			// password, counter and response included
			return nil, s.failLogin(ctx, key, nil, start)
		}
		s.logger.Error("failed to fetch principal", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, secret); err != nil {
		return nil, s.failLogin(ctx, key, user, start)
	}

	if !user.IsActive() {
		// Correct secret, dead account: no counter mutation
		s.audit.Record(ctx, models.EventTypeAccountDisabled, models.SeverityMedium, meta.ClientIP, parseUserID(user.ID), nil)
		return nil, models.ErrAccountDisabled
	}

	if err := s.ledger.Clear(ctx, key); err != nil {
		s.logger.Warn("failed to clear attempt ledger after login", slog.Any("error", err))
	}
	if err := s.users.RecordLoginSuccess(ctx, user.ID, meta.ReceivedAt); err != nil {
		s.logger.Warn("failed to record login success", slog.Any("error", err))
	}

	sessionToken, err := s.sessions.Issue(user.ID, user.Role)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	result := &LoginResult{User: user, SessionToken: sessionToken}

	if rememberMe {
		rawToken, err := s.remember.Issue(ctx, user.ID)
		if err != nil {
			// Login still succeeds; the caller just gets no remember cookie
			s.logger.Warn("failed to issue remember token", slog.Any("error", err))
		} else {
			result.RememberToken = rawToken
		}
	}

	s.audit.Record(ctx, models.EventTypeSuccessfulLogin, models.SeverityLow, meta.ClientIP, parseUserID(user.ID), nil)
	s.timing.WaitFrom(start, true)

	return result, nil
}

// failLogin records a verification failure in the ledger and, when the
// principal exists, mirrors the counter onto its row. The caller always
// gets ErrInvalidCredentials, padded to the timing budget.
func (s *AuthService) failLogin(ctx context.Context, key models.SubjectKey, user *models.User, start time.Time) error {
	record, err := s.ledger.RecordFailure(ctx, key)
	if err != nil {
		return models.ErrStoreUnavailable
	}

	var userID *uuid.UUID
	if user != nil {
		userID = parseUserID(user.ID)
		if _, err := s.users.RecordLoginFailure(ctx, user.ID, s.config.MaxAttempts, s.config.LockoutDuration); err != nil {
			s.logger.Warn("failed to mirror failure counter", slog.Any("error", err))
		}
	}

	if record.LockedUntil != nil {
		s.audit.Record(ctx, models.EventTypeAccountLocked, models.SeverityHigh, key.IPAddress, userID, models.EventDetail{
			"attempts":     record.Attempts,
			"locked_until": record.LockedUntil.UTC().Format(time.RFC3339),
		})
	} else {
		s.audit.Record(ctx, models.EventTypeFailedLogin, models.SeverityMedium, key.IPAddress, userID, models.EventDetail{
			"attempts": record.Attempts,
		})
	}

	s.timing.WaitFrom(start, false)
	return models.ErrInvalidCredentials
}

// RestoreSession turns a raw remember-me cookie into a fresh session token.
// Resolution never extends the token's expiry.
func (s *AuthService) RestoreSession(ctx context.Context, rawToken string, meta models.RequestMeta) (*LoginResult, error) {
	allowed, err := s.limiter.Allow(ctx, meta.ClientIP, EndpointRestore)
	if err != nil {
		return nil, models.ErrStoreUnavailable
	}
	if !allowed {
		return nil, models.ErrRateLimited
	}

	userID, err := s.remember.Resolve(ctx, rawToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			s.audit.Record(ctx, models.EventTypeRememberRejected, models.SeverityMedium, meta.ClientIP, nil, nil)
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrStoreUnavailable
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, models.ErrStoreUnavailable
	}

	if !user.IsActive() {
		return nil, models.ErrAccountDisabled
	}

	sessionToken, err := s.sessions.Issue(user.ID, user.Role)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.EventTypeSessionRestored, models.SeverityLow, meta.ClientIP, parseUserID(user.ID), nil)

	return &LoginResult{User: user, SessionToken: sessionToken}, nil
}

// Logout revokes every remember token for the principal. The session JWT
// simply ages out; the remember lineage dies here.
func (s *AuthService) Logout(ctx context.Context, userID string, meta models.RequestMeta) error {
	if err := s.remember.RevokeAll(ctx, userID); err != nil {
		return err
	}

	s.audit.Record(ctx, models.EventTypeLogout, models.SeverityLow, meta.ClientIP, parseUserID(userID), nil)
	return nil
}

// parseUserID converts a principal id to the audit log's uuid form.
// Returns nil for malformed ids rather than failing the caller.
func parseUserID(id string) *uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return &parsed
}
