package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/taskhub/backend/internal/models"
	"github.com/taskhub/backend/internal/repository"
)

const MinPasswordLength = 8

var (
	ErrEmailTaken       = errors.New("email already in use")
	ErrEmailRequired    = errors.New("email is required")
	ErrNameRequired     = errors.New("name is required")
	ErrPasswordTooShort = errors.New("password too short")
	ErrWrongPassword    = errors.New("current password is incorrect")
	ErrBootstrapClosed  = errors.New("user creation requires an admin account")
)

// UserService handles user management business logic.
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// CreateUserInput represents the fields an admin supplies for a new user.
type CreateUserInput struct {
	Name       string
	Email      string
	Password   string
	Role       models.UserRole
	Department string
	Position   string
}

// CreateUser creates a user. When actor is nil the call is treated as the
// unauthenticated bootstrap path, allowed only while the user table is empty;
// the bootstrap user always becomes an admin.
func (s *UserService) CreateUser(actor *models.User, input CreateUserInput) (*models.User, error) {
	if actor == nil {
		count, err := s.userRepo.Count()
		if err != nil {
			return nil, fmt.Errorf("failed to count users: %w", err)
		}
		if count > 0 {
			return nil, ErrBootstrapClosed
		}
		input.Role = models.RoleAdmin
	}

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if name == "" {
		return nil, ErrNameRequired
	}
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(input.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := input.Role
	if role == "" {
		role = models.RoleTeamMember
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Department:   input.Department,
		Position:     input.Position,
		Active:       true,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// ListUsers returns all active users.
func (s *UserService) ListUsers() ([]models.User, error) {
	users, err := s.userRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUser retrieves an active user by ID.
func (s *UserService) GetUser(id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// AdminUserPatch holds the fields an admin may change on any user.
// Nil pointers leave the field untouched.
type AdminUserPatch struct {
	Name       *string
	Email      *string
	Role       *models.UserRole
	Department *string
	Position   *string
	Photo      *string
}

// UpdateUser applies an admin patch to a user.
func (s *UserService) UpdateUser(id uint64, patch AdminUserPatch) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		if err := s.checkEmailAvailable(*patch.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = strings.ToLower(*patch.Email)
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.Department != nil {
		user.Department = *patch.Department
	}
	if patch.Position != nil {
		user.Position = *patch.Position
	}
	if patch.Photo != nil {
		user.Photo = *patch.Photo
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// ProfilePatch holds the subset of fields a user may change on themselves.
type ProfilePatch struct {
	Name       *string
	Email      *string
	Department *string
	Position   *string
	Photo      *string
}

// UpdateProfile applies a self-service patch to the acting user.
func (s *UserService) UpdateProfile(actor *models.User, patch ProfilePatch) (*models.User, error) {
	if patch.Name != nil {
		actor.Name = *patch.Name
	}
	if patch.Email != nil {
		if err := s.checkEmailAvailable(*patch.Email, actor.ID); err != nil {
			return nil, err
		}
		actor.Email = strings.ToLower(*patch.Email)
	}
	if patch.Department != nil {
		actor.Department = *patch.Department
	}
	if patch.Position != nil {
		actor.Position = *patch.Position
	}
	if patch.Photo != nil {
		actor.Photo = *patch.Photo
	}

	if err := s.userRepo.Update(actor); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return actor, nil
}

// UpdatePassword changes the acting user's password after verifying the
// current one. Existing tokens become invalid.
func (s *UserService) UpdatePassword(actor *models.User, currentPassword, newPassword string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	actor.PasswordHash = string(hash)
	actor.PasswordChangedAt = &now

	if err := s.userRepo.Update(actor); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// DeactivateUser soft deletes a user.
func (s *UserService) DeactivateUser(id uint64) error {
	if err := s.userRepo.Deactivate(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	return nil
}

func (s *UserService) checkEmailAvailable(email string, selfID uint64) error {
	existing, err := s.userRepo.FindByEmail(strings.ToLower(email))
	if err == nil && existing.ID != selfID {
		return ErrEmailTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}
