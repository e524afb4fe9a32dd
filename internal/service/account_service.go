package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const minPasswordLength = 8

// AccountService registers customers and staff.
type AccountService struct {
	users      repository.UserRepository
	admins     repository.AdminRepository
	bcryptCost int
	logger     *zap.Logger
}

// AccountInput carries the fields shared by user and admin creation.
type AccountInput struct {
	Username string
	Email    string
	Password string
}

// NewAccountService builds the service.
func NewAccountService(cfg config.AccountsConfig, users repository.UserRepository, admins repository.AdminRepository, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AccountService{
		users:      users,
		admins:     admins,
		bcryptCost: cost,
		logger:     logger.Named("accounts"),
	}
}

// CreateUser registers an end-user account.
func (s *AccountService) CreateUser(ctx context.Context, input AccountInput) (*domain.User, error) {
	username, email, hash, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	user := &domain.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, createError(err, email)
	}
	s.logger.Info("user created", zap.Int64("user_id", user.ID))
	return user, nil
}

// CreateAdmin registers a staff account.
func (s *AccountService) CreateAdmin(ctx context.Context, input AccountInput) (*domain.Admin, error) {
	username, email, hash, err := s.prepare(input)
	if err != nil {
		return nil, err
	}
	admin := &domain.Admin{Username: username, Email: email, PasswordHash: hash}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, createError(err, email)
	}
	s.logger.Info("admin created", zap.Int64("admin_id", admin.ID))
	return admin, nil
}

func (s *AccountService) prepare(input AccountInput) (string, string, string, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		return "", "", "", apperrors.NewInvalidArgument("username is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", "", "", apperrors.NewInvalidArgument("email is invalid", map[string]any{"email": input.Email})
	}
	if len(input.Password) < minPasswordLength {
		return "", "", "", apperrors.NewInvalidArgument("password must be at least 8 characters", nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return "", "", "", internalError("hash password", err)
	}
	return username, email, string(hashed), nil
}

func createError(err error, email string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}
	return internalError("create account", err)
}
