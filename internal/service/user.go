package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/storage"
	"github.com/dirigovotes/dirigo/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCurrentPassword = errors.New("current password is incorrect")

// UserService covers the signed-in user's own account.
type UserService struct {
	userRepository repository.UserRepository
	profileService *ProfileService
	avatarService  *AvatarService
	passwordRules  validation.PasswordRules
}

func NewUserService(
	userRepository repository.UserRepository,
	profileService *ProfileService,
	avatarService *AvatarService,
	passwordRules validation.PasswordRules,
) *UserService {
	return &UserService{
		userRepository: userRepository,
		profileService: profileService,
		avatarService:  avatarService,
		passwordRules:  passwordRules,
	}
}

func (s *UserService) Account(ctx context.Context, userID string) (*model.UserWithProfile, error) {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileService.ByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, err
	}

	return model.MergeUserProfile(user, profile), nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCurrentPassword
	}

	err = validation.ValidatePassword(newPassword, s.passwordRules)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.userRepository.UpdatePassword(ctx, userID, string(hashed))
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password updated", "user_id", userID)
	return nil
}

// DeleteAccount removes the user after re-checking the password. Profiles,
// tokens, votes, tracking rows and file records cascade.
func (s *UserService) DeleteAccount(ctx context.Context, userID, password string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCurrentPassword
	}

	err = s.avatarService.Delete(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrDisabled) {
		slog.Warn("failed to delete avatar", "user_id", userID, "error", err)
	}

	err = s.userRepository.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("account deleted", "user_id", userID)
	return nil
}
