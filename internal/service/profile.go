package service

import (
	"context"
	"mime/multipart"
	"strings"

	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/validation"
)

type ProfileService struct {
	profileRepository repository.ProfileRepository
	avatarService     *AvatarService
	bus               events.Bus
}

func NewProfileService(profileRepository repository.ProfileRepository, avatarService *AvatarService, bus events.Bus) *ProfileService {
	return &ProfileService{
		profileRepository: profileRepository,
		avatarService:     avatarService,
		bus:               bus,
	}
}

// ByUserID loads the profile with its avatar URL filled in.
func (s *ProfileService) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile.AvatarURL = s.avatarService.URL(ctx, userID)
	return profile, nil
}

func (s *ProfileService) UpdateName(ctx context.Context, userID, name string) (*model.Profile, error) {
	name = strings.TrimSpace(name)

	err := validation.ValidateName(name)
	if err != nil {
		return nil, err
	}

	err = s.profileRepository.UpdateName(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	s.announce(ctx, userID)
	return s.ByUserID(ctx, userID)
}

func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, header *multipart.FileHeader) (*model.Profile, error) {
	_, err := s.avatarService.Upload(ctx, userID, header)
	if err != nil {
		return nil, err
	}

	s.announce(ctx, userID)
	return s.ByUserID(ctx, userID)
}

func (s *ProfileService) DeleteAvatar(ctx context.Context, userID string) error {
	err := s.avatarService.Delete(ctx, userID)
	if err != nil {
		return err
	}

	s.announce(ctx, userID)
	return nil
}

// announce lets open admin and profile views refresh.
func (s *ProfileService) announce(ctx context.Context, userID string) {
	publish(ctx, s.bus, events.TopicProfileUpdated, map[string]string{"user_id": userID})
}
