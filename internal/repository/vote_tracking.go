package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrTrackingNotFound = errors.New("vote tracking not found")

type VoteTrackingRepository interface {
	Get(ctx context.Context, userID, issueID string) (*model.VoteTracking, error)
	Upsert(ctx context.Context, tracking *model.VoteTracking) error
	Delete(ctx context.Context, userID, issueID string) (bool, error)
}

type voteTrackingRepository struct {
	db *sqlx.DB
}

func NewVoteTrackingRepository(db *sqlx.DB) VoteTrackingRepository {
	return &voteTrackingRepository{db: db}
}

func (r *voteTrackingRepository) Get(ctx context.Context, userID, issueID string) (*model.VoteTracking, error) {
	tracking := &model.VoteTracking{}
	err := r.db.GetContext(ctx, tracking, `
		SELECT * FROM user_vote_tracking WHERE user_id = $1 AND issue_id = $2`, userID, issueID)
	if err == sql.ErrNoRows {
		return nil, ErrTrackingNotFound
	}
	if err != nil {
		return nil, err
	}
	return tracking, nil
}

func (r *voteTrackingRepository) Upsert(ctx context.Context, tracking *model.VoteTracking) error {
	if tracking.CreatedAt.IsZero() {
		tracking.CreatedAt = now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_vote_tracking (user_id, issue_id, position_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, issue_id) DO UPDATE
		SET position_id = EXCLUDED.position_id, created_at = EXCLUDED.created_at`,
		tracking.UserID, tracking.IssueID, tracking.PositionID, tracking.CreatedAt)
	return err
}

func (r *voteTrackingRepository) Delete(ctx context.Context, userID, issueID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM user_vote_tracking WHERE user_id = $1 AND issue_id = $2`, userID, issueID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
