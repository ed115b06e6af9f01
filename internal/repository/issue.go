package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrIssueNotFound    = errors.New("issue not found")
	ErrPositionNotFound = errors.New("position not found")
)

type IssueRepository interface {
	Create(ctx context.Context, issue *model.Issue) error
	ByID(ctx context.Context, id string) (*model.Issue, error)
	List(ctx context.Context, filter model.IssueFilter) ([]*model.Issue, int, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type issueRepository struct {
	db *sqlx.DB
}

func NewIssueRepository(db *sqlx.DB) IssueRepository {
	return &issueRepository{db: db}
}

func (r *issueRepository) Create(ctx context.Context, issue *model.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.New().String()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issues (id, title, category, scope, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, issue.ID, issue.Title, issue.Category, issue.Scope, issue.CreatedBy, issue.CreatedAt)
	return err
}

func (r *issueRepository) ByID(ctx context.Context, id string) (*model.Issue, error) {
	issue := &model.Issue{}
	err := r.db.GetContext(ctx, issue, `SELECT * FROM issues WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// List returns one page of issues, newest first, plus the total matching count.
func (r *issueRepository) List(ctx context.Context, filter model.IssueFilter) ([]*model.Issue, int, error) {
	var where []string
	var args []any
	if filter.Scope != "" {
		args = append(args, filter.Scope)
		where = append(where, "scope = "+placeholders(1, len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, "category = "+placeholders(1, len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM issues`+clause, args...)
	if err != nil {
		return nil, 0, err
	}

	issues := []*model.Issue{}
	limitArgs := append(args, filter.PageSize, offset(filter.Page, filter.PageSize))
	query := `SELECT * FROM issues` + clause +
		` ORDER BY created_at DESC, id LIMIT ` + placeholders(1, len(args)+1) +
		` OFFSET ` + placeholders(1, len(args)+2)
	err = r.db.SelectContext(ctx, &issues, query, limitArgs...)
	if err != nil {
		return nil, 0, err
	}

	return issues, total, nil
}

// Delete removes an issue owned by ownerID. Positions, votes and reports cascade.
func (r *issueRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1 AND created_by = $2`, id, ownerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrIssueNotFound
	}
	return nil
}
