package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dirigovotes/dirigo/internal/model"
	"github.com/dirigovotes/dirigo/internal/repository"
	"github.com/dirigovotes/dirigo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenReplaceRevokesUnusedLinks(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	tokens := repository.NewTokenRepository(database)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, tokens.Replace(ctx, &model.Token{UserID: user.ID, Purpose: model.TokenPurposeEmailVerify, Value: "first", ExpiresAt: expires}))
	require.NoError(t, tokens.Replace(ctx, &model.Token{UserID: user.ID, Purpose: model.TokenPurposeEmailVerify, Value: "second", ExpiresAt: expires}))

	_, err := tokens.Consume(ctx, "first", model.TokenPurposeEmailVerify)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	token, err := tokens.Consume(ctx, "second", model.TokenPurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, user.ID, token.UserID)
	assert.NotNil(t, token.UsedAt)

	_, err = tokens.Consume(ctx, "second", model.TokenPurposeEmailVerify)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestTokenConsumeChecksPurposeAndExpiry(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	tokens := repository.NewTokenRepository(database)

	require.NoError(t, tokens.Replace(ctx, &model.Token{UserID: user.ID, Purpose: model.TokenPurposeEmailVerify, Value: "stale", ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err := tokens.Consume(ctx, "stale", model.TokenPurposeEmailVerify)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	require.NoError(t, tokens.Replace(ctx, &model.Token{UserID: user.ID, Purpose: model.TokenPurposeEmailVerify, Value: "fresh", ExpiresAt: time.Now().Add(time.Hour)}))
	_, err = tokens.Consume(ctx, "fresh", model.TokenPurpose("password_reset"))
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestTokenConsumeOnce(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	tokens := repository.NewTokenRepository(database)
	require.NoError(t, tokens.Replace(ctx, &model.Token{UserID: user.ID, Purpose: model.TokenPurposeEmailVerify, Value: "race", ExpiresAt: time.Now().Add(time.Hour)}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tokens.Consume(ctx, "race", model.TokenPurposeEmailVerify)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestTokenCleanupExpired(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	tokens := repository.NewTokenRepository(database)

	require.NoError(t, tokens.Replace(ctx, &model.Token{UserID: user.ID, Purpose: model.TokenPurposeEmailVerify, Value: "old", ExpiresAt: time.Now().Add(-48 * time.Hour)}))

	n, err := tokens.CleanupExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAvatarPutReturnsReplaced(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewDB(t)
	user := testutil.CreateUser(t, database, "voter@example.com", model.RoleBasic)
	avatars := repository.NewAvatarRepository(database)

	_, err := avatars.ByUser(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrAvatarNotFound)

	first := &model.Avatar{UserID: user.ID, ObjectKey: "public/avatars/a.png", OriginalName: "a.png", MimeType: "image/png", Size: 10}
	previous, err := avatars.Put(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, previous)

	second := &model.Avatar{UserID: user.ID, ObjectKey: "public/avatars/b.png", OriginalName: "b.png", MimeType: "image/png", Size: 12}
	previous, err = avatars.Put(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, first.ObjectKey, previous.ObjectKey)

	current, err := avatars.ByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	require.NoError(t, avatars.Delete(ctx, user.ID))
	_, err = avatars.ByUser(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrAvatarNotFound)
}
