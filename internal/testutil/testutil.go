// Package testutil builds migrated in-memory databases and fixture rows.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dirigovotes/dirigo/internal/db"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Password is the plain-text password of every fixture user.
const Password = "Password1"

// NewDB returns a private, migrated SQLite database closed at test end.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite"
	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	err = db.Migrate(context.Background(), database.DB, "sqlite")
	require.NoError(t, err)

	return database
}

// CreateUser inserts a confirmed user with an active profile of the given role.
func CreateUser(t *testing.T, database *sqlx.DB, email, role string) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := string(hash)
	verified := time.Now().UTC()

	user := &model.User{ID: uuid.NewString(), Email: email, PasswordHash: &hashed, EmailVerifiedAt: &verified}
	profile := &model.Profile{UserID: user.ID, Name: "Test User", Status: model.ProfileStatusActive, Role: role}

	err = repository.NewUserRepository(database).CreateWithProfile(context.Background(), user, profile)
	require.NoError(t, err)
	return user
}

// CreateIssue inserts an issue with one position per title.
func CreateIssue(t *testing.T, database *sqlx.DB, ownerID string, positionTitles ...string) (*model.Issue, []*model.Position) {
	t.Helper()
	ctx := context.Background()

	issue := &model.Issue{Title: "Ranked choice voting", Category: "elections", Scope: model.ScopeState, CreatedBy: ownerID}
	require.NoError(t, repository.NewIssueRepository(database).Create(ctx, issue))

	positionRepository := repository.NewPositionRepository(database)
	positions := make([]*model.Position, 0, len(positionTitles))
	for _, title := range positionTitles {
		p := &model.Position{IssueID: issue.ID, AuthorID: ownerID, Title: title, Content: "Because."}
		require.NoError(t, positionRepository.Create(ctx, p))
		positions = append(positions, p)
	}
	return issue, positions
}

// Votes reads a position's stored counter.
func Votes(t *testing.T, database *sqlx.DB, positionID string) int {
	t.Helper()
	p, err := repository.NewPositionRepository(database).ByID(context.Background(), positionID)
	require.NoError(t, err)
	return p.Votes
}
