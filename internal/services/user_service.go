package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/evanmori/neighborlink/internal/auth"
	"github.com/evanmori/neighborlink/internal/models"
	"github.com/evanmori/neighborlink/pkg/crypto"
	apperrors "github.com/evanmori/neighborlink/pkg/errors"
)

// RegisterInput carries a signup request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateProfileInput carries profile edits. Nil fields are left untouched.
type UpdateProfileInput struct {
	Name           *string
	Bio            *string
	Location       *string
	ProfilePicture *string
}

// UserService manages accounts and authentication.
type UserService struct {
	db  *gorm.DB
	jwt *auth.JWTService
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, jwt *auth.JWTService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("user service: jwt service is required")
	}
	return &UserService{db: db, jwt: jwt}, nil
}

// Register creates an account and returns the user with a fresh access token.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, string, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return nil, "", apperrors.NewValidation("Name, email, and password are required")
	}
	if len(input.Password) < 8 {
		return nil, "", apperrors.NewValidation("Password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Name:     input.Name,
		Email:    input.Email,
		Password: hash,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, "", apperrors.NewConflict("An account with this email already exists")
		}
		return nil, "", fmt.Errorf("user service: create user: %w", err)
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Name)
	if err != nil {
		return nil, "", fmt.Errorf("user service: issue token: %w", err)
	}
	return &user, token, nil
}

// Login verifies credentials and returns the user with a fresh access token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Name)
	if err != nil {
		return nil, "", fmt.Errorf("user service: issue token: %w", err)
	}
	return &user, token, nil
}

// GetByID returns one user's public profile.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("User not found")
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies edits to the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidation("Name cannot be empty")
		}
		updates["name"] = name
		user.Name = name
	}
	if input.Bio != nil {
		updates["bio"] = strings.TrimSpace(*input.Bio)
		user.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
		user.Location = strings.TrimSpace(*input.Location)
	}
	if input.ProfilePicture != nil {
		updates["profile_picture"] = strings.TrimSpace(*input.ProfilePicture)
		user.ProfilePicture = strings.TrimSpace(*input.ProfilePicture)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}
	return user, nil
}
