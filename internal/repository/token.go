package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrTokenNotFound = errors.New("token not found")

type TokenRepository interface {
	Replace(ctx context.Context, token *model.Token) error
	Consume(ctx context.Context, value string, purpose model.TokenPurpose) (*model.Token, error)
	CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type tokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) TokenRepository {
	return &tokenRepository{db: db}
}

// Replace stores token and drops the user's other unused tokens of the
// same purpose, so only the newest link works.
func (r *tokenRepository) Replace(ctx context.Context, token *model.Token) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM tokens WHERE user_id = $1 AND type = $2 AND used_at IS NULL`,
		token.UserID, token.Purpose,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke previous tokens: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tokens (id, user_id, type, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.ID, token.UserID, token.Purpose, token.Value, token.ExpiresAt.UTC(), token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}

	return tx.Commit()
}

// Consume marks an unexpired token of the given purpose as used and returns
// it. A single UPDATE claims it, so two concurrent callers cannot both win.
func (r *tokenRepository) Consume(ctx context.Context, value string, purpose model.TokenPurpose) (*model.Token, error) {
	ts := now()

	var token model.Token
	err := r.db.GetContext(ctx, &token, `
		UPDATE tokens SET used_at = $1
		WHERE token = $2 AND type = $3 AND used_at IS NULL AND expires_at > $1
		RETURNING id, user_id, type, token, expires_at, used_at, created_at
	`, ts, value, purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// CleanupExpired deletes tokens used or expired before now minus olderThan.
func (r *tokenRepository) CleanupExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE used_at < $1 OR expires_at < $1`,
		now().Add(-olderThan),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
