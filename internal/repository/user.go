package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already exists")
	ErrProfileNotFound = errors.New("profile not found")
)

type UserRepository interface {
	CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	MarkVerified(ctx context.Context, id string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context, page, pageSize int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, term string, limit int) ([]*model.User, error)
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateWithProfile inserts the credential row and its profile in one transaction.
func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User, profile *model.Profile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = insertUser(ctx, tx, user)
	if err != nil {
		return err
	}

	err = insertProfile(ctx, tx, profile)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return tx.Commit()
}

func insertUser(ctx context.Context, exec sqlx.ExecerContext, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}

	query := `INSERT INTO users (id, email, password_hash, email_verified_at, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := exec.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.EmailVerifiedAt, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// MarkVerified sets email_verified_at once; later calls keep the first timestamp.
func (r *userRepository) MarkVerified(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `
		UPDATE users
		SET email_verified_at = COALESCE(email_verified_at, $1)
		WHERE id = $2
		RETURNING *
	`

	err := r.db.GetContext(ctx, user, query, now(), id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userRepository) List(ctx context.Context, page, pageSize int) ([]*model.User, error) {
	users := []*model.User{}
	query := `SELECT * FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	err := r.db.SelectContext(ctx, &users, query, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`)
	return total, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches the term against email and profile name, case-insensitively.
// Wildcards in term match literally.
func (r *userRepository) Search(ctx context.Context, term string, limit int) ([]*model.User, error) {
	users := []*model.User{}
	query := `
		SELECT u.* FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE LOWER(u.email) LIKE $1 ESCAPE '\' OR LOWER(p.name) LIKE $1 ESCAPE '\'
		ORDER BY u.email
		LIMIT $2
	`

	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	err := r.db.SelectContext(ctx, &users, query, pattern, limit)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}
