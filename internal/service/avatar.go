package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/storage"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/google/uuid"
)

// AvatarService keeps profile pictures in object storage. With a nil
// storage every write returns storage.ErrDisabled.
type AvatarService struct {
	avatarRepository repository.AvatarRepository
	storage          storage.Storage
}

func NewAvatarService(avatarRepository repository.AvatarRepository, store storage.Storage) *AvatarService {
	return &AvatarService{avatarRepository: avatarRepository, storage: store}
}

func (s *AvatarService) Enabled() bool {
	return s.storage != nil
}

func (s *AvatarService) Upload(ctx context.Context, userID string, header *multipart.FileHeader) (*model.Avatar, error) {
	if !s.Enabled() {
		return nil, storage.ErrDisabled
	}

	mimeType, err := validation.ValidateImage(header, validation.AvatarRules)
	if err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	key := path.Join("public", "avatars", userID, uuid.NewString()+validation.AvatarRules.MimeTypes[mimeType])
	err = s.storage.Save(ctx, key, mimeType, src)
	if err != nil {
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}

	avatar := &model.Avatar{
		UserID:       userID,
		ObjectKey:    key,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Size:         header.Size,
	}
	previous, err := s.avatarRepository.Put(ctx, avatar)
	if err != nil {
		s.removeObject(ctx, key)
		return nil, fmt.Errorf("failed to save avatar: %w", err)
	}
	if previous != nil {
		s.removeObject(ctx, previous.ObjectKey)
	}

	return avatar, nil
}

// URL is empty when the user has no avatar or storage is off.
func (s *AvatarService) URL(ctx context.Context, userID string) string {
	if !s.Enabled() {
		return ""
	}
	avatar, err := s.avatarRepository.ByUser(ctx, userID)
	if err != nil {
		return ""
	}
	return s.storage.URL(ctx, avatar.ObjectKey)
}

func (s *AvatarService) Delete(ctx context.Context, userID string) error {
	if !s.Enabled() {
		return storage.ErrDisabled
	}

	avatar, err := s.avatarRepository.ByUser(ctx, userID)
	if errors.Is(err, repository.ErrAvatarNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	err = s.avatarRepository.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete avatar: %w", err)
	}
	s.removeObject(ctx, avatar.ObjectKey)
	return nil
}

// removeObject is best effort; an orphaned object only costs storage.
func (s *AvatarService) removeObject(ctx context.Context, key string) {
	err := s.storage.Delete(ctx, key)
	if err != nil {
		slog.Error("failed to delete avatar object", "error", err, "key", key)
	}
}
