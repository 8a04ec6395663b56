package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ewhitfield/storefront/internal/models"
	pkgauth "github.com/ewhitfield/storefront/pkg/auth"
)

// RegistrationRepository extends the credential store with account creation
type RegistrationRepository interface {
	UserRepository
	Create(ctx context.Context, user *models.User) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}

// UserService handles account registration against the credential store
type UserService struct {
	repo   RegistrationRepository
	audit  AuditRecorder
	policy pkgauth.Policy
	logger *slog.Logger
}

func NewUserService(repo RegistrationRepository, audit AuditRecorder, policy pkgauth.Policy, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		audit:  audit,
		policy: policy,
		logger: logger,
	}
}

// Register creates a new principal. Password policy violations and duplicate
// accounts both bubble up for the handler to flatten into an
// enumeration-safe response.
func (s *UserService) Register(ctx context.Context, email, username, password string, meta models.RequestMeta) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))

	if email == "" || username == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password, s.policy); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		s.logger.Error("failed to check account existence", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}
	if exists {
		s.logger.Info("registration rejected: account exists")
		return nil, models.ErrConflict
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashedPassword,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}

	s.audit.Record(ctx, models.EventTypeRegistration, models.SeverityLow, meta.ClientIP, parseUserID(created.ID), nil)
	s.logger.Info("account registered", slog.String("user_id", created.ID))

	return created, nil
}
