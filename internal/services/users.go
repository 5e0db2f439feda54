package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"inspecta-backend/internal/models"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)
)

type UserService struct {
	users    userStore
	sessions sessionRegistry
	logger   *zap.Logger
}

func NewUserService(users userStore, sessions sessionRegistry, logger *zap.Logger) *UserService {
	return &UserService{users: users, sessions: sessions, logger: logger}
}

func (s *UserService) List(ctx context.Context, domainID uuid.UUID, role string) ([]*models.User, error) {
	if role != "" && !models.IsValidRole(role) {
		return nil, &ValidationError{Fields: map[string]string{"role": "Unknown role"}}
	}
	return s.users.ListByDomain(ctx, domainID, role)
}

// Get returns a user of the domain.
func (s *UserService) Get(ctx context.Context, domainID, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	if user.DomainID != domainID {
		return nil, &NotFoundError{Message: "User not found"}
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, domainID uuid.UUID, req models.CreateUserRequest) (*models.User, error) {
	fieldErrors := make(map[string]string)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if !usernameRegex.MatchString(req.Username) {
		fieldErrors["username"] = "Username must be 3-64 letters, digits, dots, dashes or underscores"
	}
	if req.Email != "" && !emailRegex.MatchString(req.Email) {
		fieldErrors["email"] = "Invalid email format"
	}
	if !models.IsValidRole(req.Role) {
		fieldErrors["role"] = "Role must be admin, supervisor or operator"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		DomainID:     domainID,
		Username:     req.Username,
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storeError(err, "Username already in use", "Domain not found")
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, domainID, userID uuid.UUID, req models.UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(ctx, domainID, userID)
	if err != nil {
		return nil, err
	}

	fieldErrors := make(map[string]string)
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !emailRegex.MatchString(email) {
			fieldErrors["email"] = "Invalid email format"
		}
		user.Email = email
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			fieldErrors["role"] = "Role must be admin, supervisor or operator"
		}
		user.Role = *req.Role
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	wasActive := user.IsActive
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, storeError(err, "Username already in use", "User not found")
	}

	if wasActive && !user.IsActive {
		s.revokeSessions(ctx, user.ID)
	}
	return user, nil
}

// Deactivate disables the account and drops all of its sessions.
func (s *UserService) Deactivate(ctx context.Context, domainID, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return &ConflictError{Message: "You cannot deactivate your own account"}
	}
	if err := s.users.Deactivate(ctx, domainID, userID); err != nil {
		return notFound(err, "User not found")
	}
	s.revokeSessions(ctx, userID)
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID uuid.UUID) {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		s.logger.Error("failed to revoke sessions", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
