package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrAvatarNotFound = errors.New("avatar not found")

type AvatarRepository interface {
	ByUser(ctx context.Context, userID string) (*model.Avatar, error)
	Put(ctx context.Context, avatar *model.Avatar) (*model.Avatar, error)
	Delete(ctx context.Context, userID string) error
}

type avatarRepository struct {
	db *sqlx.DB
}

func NewAvatarRepository(db *sqlx.DB) AvatarRepository {
	return &avatarRepository{db: db}
}

func (r *avatarRepository) ByUser(ctx context.Context, userID string) (*model.Avatar, error) {
	return getAvatar(ctx, r.db, userID)
}

func getAvatar(ctx context.Context, q sqlx.QueryerContext, userID string) (*model.Avatar, error) {
	var avatar model.Avatar
	err := sqlx.GetContext(ctx, q, &avatar, `SELECT * FROM avatars WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAvatarNotFound
	}
	if err != nil {
		return nil, err
	}
	return &avatar, nil
}

// Put makes avatar the user's current one. It returns the record it
// replaced, or nil, so the caller can remove the old object.
func (r *avatarRepository) Put(ctx context.Context, avatar *model.Avatar) (*model.Avatar, error) {
	if avatar.ID == "" {
		avatar.ID = uuid.NewString()
	}
	avatar.CreatedAt = now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := getAvatar(ctx, tx, avatar.UserID)
	switch {
	case errors.Is(err, ErrAvatarNotFound):
		previous = nil
	case err != nil:
		return nil, err
	default:
		_, err = tx.ExecContext(ctx, `DELETE FROM avatars WHERE id = $1`, previous.ID)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO avatars (id, user_id, object_key, original_name, mime_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, avatar.ID, avatar.UserID, avatar.ObjectKey, avatar.OriginalName, avatar.MimeType, avatar.Size, avatar.CreatedAt)
	if err != nil {
		return nil, err
	}

	return previous, tx.Commit()
}

func (r *avatarRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM avatars WHERE user_id = $1`, userID)
	return err
}
