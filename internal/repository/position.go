package repository

import (
	"context"
	"database/sql"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PositionRepository interface {
	Create(ctx context.Context, position *model.Position) error
	ByID(ctx context.Context, id string) (*model.Position, error)
	ByIssue(ctx context.Context, issueID string) ([]*model.Position, error)
	IncrementVotes(ctx context.Context, id string) (int, error)
}

type positionRepository struct {
	db *sqlx.DB
}

func NewPositionRepository(db *sqlx.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Create(ctx context.Context, position *model.Position) error {
	if position.ID == "" {
		position.ID = uuid.New().String()
	}
	if position.CreatedAt.IsZero() {
		position.CreatedAt = now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions (id, issue_id, author_id, title, content, votes, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
	`, position.ID, position.IssueID, position.AuthorID, position.Title, position.Content, position.CreatedAt)
	return err
}

func (r *positionRepository) ByID(ctx context.Context, id string) (*model.Position, error) {
	position := &model.Position{}
	err := r.db.GetContext(ctx, position, `SELECT * FROM positions WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}
	return position, nil
}

func (r *positionRepository) ByIssue(ctx context.Context, issueID string) ([]*model.Position, error) {
	positions := []*model.Position{}
	err := r.db.SelectContext(ctx, &positions, `
		SELECT * FROM positions WHERE issue_id = $1 ORDER BY votes DESC, created_at
	`, issueID)
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// IncrementVotes is the ghost-vote path: a single atomic increment with no vote record.
func (r *positionRepository) IncrementVotes(ctx context.Context, id string) (int, error) {
	var votes int
	err := r.db.GetContext(ctx, &votes, `
		UPDATE positions SET votes = votes + 1 WHERE id = $1 RETURNING votes
	`, id)
	if err == sql.ErrNoRows {
		return 0, ErrPositionNotFound
	}
	return votes, err
}
