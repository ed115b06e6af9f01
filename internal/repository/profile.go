package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ProfileRepository interface {
	ByUserID(ctx context.Context, userID string) (*model.Profile, error)
	ByUserIDs(ctx context.Context, userIDs []string) (map[string]*model.Profile, error)
	UpdateName(ctx context.Context, userID, name string) error
	UpdateRole(ctx context.Context, userID, role string) (*model.Profile, error)
	UpdateStatus(ctx context.Context, userID, status string) (*model.Profile, error)
	ActivatePending(ctx context.Context, userID string) (bool, error)
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID)

	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// ByUserIDs bulk-loads profiles keyed by user id. Missing profiles are absent from the map.
func (r *profileRepository) ByUserIDs(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	result := make(map[string]*model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	var profiles []*model.Profile
	query := fmt.Sprintf(`SELECT * FROM profiles WHERE user_id IN (%s)`, placeholders(len(userIDs), 1))
	err := r.db.SelectContext(ctx, &profiles, query, args...)
	if err != nil {
		return nil, err
	}

	for _, p := range profiles {
		result[p.UserID] = p
	}
	return result, nil
}

func insertProfile(ctx context.Context, exec sqlx.ExecerContext, profile *model.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.Status == "" {
		profile.Status = model.ProfileStatusPending
	}
	if profile.Role == "" {
		profile.Role = model.RoleBasic
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now()
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = profile.CreatedAt
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, name, status, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, profile.ID, profile.UserID, profile.Name, profile.Status, profile.Role, profile.CreatedAt, profile.UpdatedAt)

	return err
}

func (r *profileRepository) UpdateName(ctx context.Context, userID, name string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET name = $1, updated_at = $2
		WHERE user_id = $3
	`, name, now(), userID)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *profileRepository) UpdateRole(ctx context.Context, userID, role string) (*model.Profile, error) {
	return r.updateColumn(ctx, userID, "role", role)
}

func (r *profileRepository) UpdateStatus(ctx context.Context, userID, status string) (*model.Profile, error) {
	return r.updateColumn(ctx, userID, "status", status)
}

// updateColumn is only called with fixed column names, never user input.
func (r *profileRepository) updateColumn(ctx context.Context, userID, column, value string) (*model.Profile, error) {
	var profile model.Profile
	query := fmt.Sprintf(`
		UPDATE profiles
		SET %s = $1, updated_at = $2
		WHERE user_id = $3
		RETURNING *
	`, column)

	err := r.db.GetContext(ctx, &profile, query, value, now(), userID)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// ActivatePending flips a pending profile to active. It reports false when the
// profile was not pending, so concurrent listeners activate at most once.
func (r *profileRepository) ActivatePending(ctx context.Context, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND status = $4
	`, model.ProfileStatusActive, now(), userID, model.ProfileStatusPending)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}
