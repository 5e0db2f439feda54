package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"inspecta-backend/internal/middleware"
	"inspecta-backend/internal/models"
)

var bcryptCost = 12

type domainStore interface {
	List(ctx context.Context) ([]*models.Domain, error)
	GetByCode(ctx context.Context, code string) (*models.Domain, error)
	Ensure(ctx context.Context, code, name string) (*models.Domain, error)
}

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, domainID uuid.UUID, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByDomain(ctx context.Context, domainID uuid.UUID, role string) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	Deactivate(ctx context.Context, domainID, userID uuid.UUID) error
}

type sessionRegistry interface {
	Register(ctx context.Context, sessionID string, userID uuid.UUID, ttl time.Duration) error
	Revoke(ctx context.Context, sessionID string, userID uuid.UUID) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type AuthService struct {
	domains  domainStore
	users    userStore
	sessions sessionRegistry
	auth     *middleware.SessionAuth
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(domains domainStore, users userStore, sessions sessionRegistry, auth *middleware.SessionAuth, logger *zap.Logger) *AuthService {
	return &AuthService{
		domains:  domains,
		users:    users,
		sessions: sessions,
		auth:     auth,
		logger:   logger,
		now:      time.Now,
	}
}

const invalidCredentials = "Invalid domain, username or password"

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	fieldErrors := make(map[string]string)
	req.Domain = strings.TrimSpace(req.Domain)
	req.Username = strings.TrimSpace(req.Username)
	if req.Domain == "" {
		fieldErrors["domain"] = "Domain is required"
	}
	if req.Username == "" {
		fieldErrors["username"] = "Username is required"
	}
	if req.Password == "" {
		fieldErrors["password"] = "Password is required"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	domain, err := s.domains.GetByCode(ctx, req.Domain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: invalidCredentials}
		}
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, domain.ID, req.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &UnauthorizedError{Message: invalidCredentials}
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: invalidCredentials}
	}

	if !user.IsActive {
		return nil, &UnauthorizedError{Message: "Account is deactivated"}
	}

	id := middleware.Identity{
		UserID:    user.ID,
		DomainID:  domain.ID,
		Domain:    domain.Code,
		Username:  user.Username,
		Role:      user.Role,
		SessionID: uuid.NewString(),
	}

	code, expiresAt, err := s.auth.IssueSessionCode(id, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Register(ctx, id.SessionID, user.ID, s.auth.TTL); err != nil {
		return nil, fmt.Errorf("failed to register session: %w", err)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	return &models.LoginResponse{
		SessionCode: code,
		ExpiresAt:   expiresAt,
		Domain:      domain.Code,
		User:        user,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, id middleware.Identity) error {
	return s.sessions.Revoke(ctx, id.SessionID, id.UserID)
}

func (s *AuthService) Me(ctx context.Context, id middleware.Identity) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, id middleware.Identity, req models.ChangePasswordRequest) error {
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return &ValidationError{Fields: map[string]string{"password": "Current and new passwords are required"}}
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return &ValidationError{Fields: map[string]string{"new_password": err.Error()}}
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return notFound(err, "User not found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return &ValidationError{Fields: map[string]string{"current_password": "Current password is incorrect"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash))
}

func (s *AuthService) ListDomains(ctx context.Context) ([]*models.Domain, error) {
	return s.domains.List(ctx)
}

// Bootstrap makes sure the domain exists and has an admin account with the
// given username. An existing user is left untouched.
func (s *AuthService) Bootstrap(ctx context.Context, code, name, username, password string) error {
	if name == "" {
		name = code
	}
	domain, err := s.domains.Ensure(ctx, code, name)
	if err != nil {
		return fmt.Errorf("ensure domain: %w", err)
	}

	_, err = s.users.GetByUsername(ctx, domain.ID, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.User{
		DomainID:     domain.ID,
		Username:     username,
		FullName:     username,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	s.logger.Info("bootstrap admin created", zap.String("domain", code), zap.String("username", username))
	return nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}
