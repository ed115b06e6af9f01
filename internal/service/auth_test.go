package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dirigovotes/dirigo/internal/events"
	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/service"
	"github.com/dirigovotes/dirigo/internal/testutil"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	db       *sqlx.DB
	auth     *service.AuthService
	profiles repository.ProfileRepository

	mu       sync.Mutex
	received []events.Event
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	database := testutil.NewDB(t)
	bus := events.NewLocalBus()
	emailService := service.NewEmailService("", "noreply@example.com", "http://localhost:8090", "Dirigo", true)
	profiles := repository.NewProfileRepository(database)

	f := &authFixture{db: database, profiles: profiles}
	f.auth = service.NewAuthService(
		repository.NewUserRepository(database),
		profiles,
		repository.NewTokenRepository(database),
		emailService,
		bus,
		validation.StrictPassword,
		"test-secret",
		time.Hour,
		24*time.Hour,
	)

	t.Cleanup(service.NewProfileActivator(profiles, emailService, bus).Start())
	t.Cleanup(bus.Subscribe("", func(_ context.Context, e events.Event) {
		f.mu.Lock()
		f.received = append(f.received, e)
		f.mu.Unlock()
	}))
	return f
}

func (f *authFixture) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.received))
	for _, e := range f.received {
		out = append(out, e.Topic)
	}
	return out
}

func (f *authFixture) verificationToken(t *testing.T, userID string) string {
	t.Helper()
	var token string
	err := f.db.Get(&token, `SELECT token FROM tokens WHERE user_id = $1 AND used_at IS NULL`, userID)
	require.NoError(t, err)
	return token
}

func (f *authFixture) countUsers(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM users`))
	return n
}

func TestSignUpVerifyAndSignIn(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.auth.SignUp(ctx, service.SignUpRequest{
		Email:    " Voter@Example.com",
		Password: testutil.Password,
		Metadata: map[string]string{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "voter@example.com", user.Email)

	profile, err := f.profiles.ByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileStatusPending, profile.Status)
	assert.Equal(t, model.RoleBasic, profile.Role)
	assert.Equal(t, "Ada", profile.Name)

	_, err = f.auth.SignIn(ctx, "voter@example.com", testutil.Password)
	assert.ErrorIs(t, err, service.ErrEmailNotVerified)

	verified, err := f.auth.VerifyEmail(ctx, f.verificationToken(t, user.ID))
	require.NoError(t, err)
	require.NotNil(t, verified.EmailVerifiedAt)

	// The activator runs synchronously on the local bus.
	profile, err = f.profiles.ByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProfileStatusActive, profile.Status)
	assert.ElementsMatch(t, []string{events.TopicAuthStateChanged, events.TopicEmailVerificationSuccess}, f.topics())

	session, err := f.auth.SignIn(ctx, "VOTER@example.com", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, "bearer", session.TokenType)

	sessionUser, sessionProfile, err := f.auth.Session(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sessionUser.ID)
	assert.Nil(t, sessionUser.PasswordHash)
	assert.Equal(t, model.ProfileStatusActive, sessionProfile.Status)
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.auth.SignUp(ctx, service.SignUpRequest{Email: "a@example.com", Password: testutil.Password})
	require.NoError(t, err)
	token := f.verificationToken(t, user.ID)

	_, err = f.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)

	_, err = f.auth.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	_, err = f.auth.VerifyEmail(ctx, "nope")
	assert.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestSignUpErrors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.auth.SignUp(ctx, service.SignUpRequest{Email: "a@example.com", Password: testutil.Password})
	require.NoError(t, err)

	_, err = f.auth.SignUp(ctx, service.SignUpRequest{Email: "A@example.com", Password: testutil.Password})
	assert.ErrorIs(t, err, service.ErrEmailAlreadyExists)

	_, err = f.auth.SignUp(ctx, service.SignUpRequest{Email: "not-an-email", Password: testutil.Password})
	assert.ErrorIs(t, err, service.ErrInvalidEmail)

	_, err = f.auth.SignUp(ctx, service.SignUpRequest{Email: "b@example.com", Password: "abc123"})
	assert.True(t, validation.IsValidationError(err))

	assert.Equal(t, 1, f.countUsers(t))
}

func TestSignInErrors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "member@example.com", model.RoleBasic)

	_, err := f.auth.SignIn(ctx, "nobody@example.com", testutil.Password)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = f.auth.SignIn(ctx, user.Email, "WrongPassword1")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, err = f.profiles.UpdateStatus(ctx, user.ID, model.ProfileStatusDeactivated)
	require.NoError(t, err)
	_, err = f.auth.SignIn(ctx, user.Email, testutil.Password)
	assert.ErrorIs(t, err, service.ErrAccountDeactivated)
}

func TestResendVerificationNeverCreatesAccounts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.ResendVerification(ctx, "ghost@example.com", ""))
	assert.Equal(t, 0, f.countUsers(t))

	user, err := f.auth.SignUp(ctx, service.SignUpRequest{Email: "a@example.com", Password: testutil.Password})
	require.NoError(t, err)
	first := f.verificationToken(t, user.ID)

	require.NoError(t, f.auth.ResendVerification(ctx, "a@example.com", ""))
	second := f.verificationToken(t, user.ID)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, f.countUsers(t))

	_, err = f.auth.VerifyEmail(ctx, first)
	assert.ErrorIs(t, err, service.ErrInvalidToken)

	assert.ErrorIs(t, f.auth.ResendVerification(ctx, "bad", ""), service.ErrInvalidEmail)
}

func TestAccountStatus(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "member@example.com", model.RoleBasic)
	_, err := f.auth.SignUp(ctx, service.SignUpRequest{Email: "pending@example.com", Password: testutil.Password})
	require.NoError(t, err)

	exists, confirmed, err := f.auth.AccountStatus(ctx, "member@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, confirmed)

	exists, confirmed, err = f.auth.AccountStatus(ctx, "pending@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, confirmed)

	exists, err = f.auth.UserExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionRejectsForeignTokens(t *testing.T) {
	f := newAuthFixture(t)

	_, _, err := f.auth.Session(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, service.ErrInvalidSession)
}
