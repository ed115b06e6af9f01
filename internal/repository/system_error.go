package repository

import (
	"context"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type SystemErrorRepository interface {
	Create(ctx context.Context, systemError *model.SystemError) error
	Recent(ctx context.Context, limit int) ([]*model.SystemError, error)
	RecordError(ctx context.Context, level, message, details string) error
}

type systemErrorRepository struct {
	db *sqlx.DB
}

func NewSystemErrorRepository(db *sqlx.DB) SystemErrorRepository {
	return &systemErrorRepository{db: db}
}

func (r *systemErrorRepository) Create(ctx context.Context, systemError *model.SystemError) error {
	if systemError.ID == "" {
		systemError.ID = uuid.New().String()
	}
	if systemError.Context == "" {
		systemError.Context = "{}"
	}
	systemError.CreatedAt = now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_errors (id, level, message, context, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		systemError.ID, systemError.Level, systemError.Message, systemError.Context, systemError.CreatedAt)
	return err
}

// RecordError satisfies logger.ErrorSink.
func (r *systemErrorRepository) RecordError(ctx context.Context, level, message, details string) error {
	return r.Create(ctx, &model.SystemError{Level: level, Message: message, Context: details})
}

func (r *systemErrorRepository) Recent(ctx context.Context, limit int) ([]*model.SystemError, error) {
	errs := []*model.SystemError{}
	err := r.db.SelectContext(ctx, &errs, `SELECT * FROM system_errors ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return errs, nil
}
