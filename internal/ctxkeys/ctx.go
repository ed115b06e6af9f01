// Package ctxkeys stores per-request values on a context.
package ctxkeys

import (
	"context"

	"github.com/dirigovotes/dirigo/internal/model"
)

type key int

const (
	userKey key = iota
	profileKey
	requestIDKey
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}

// UserID returns the signed-in user's id, or "" for guests.
func UserID(ctx context.Context) string {
	if user := User(ctx); user != nil {
		return user.ID
	}
	return ""
}

func Profile(ctx context.Context) *model.Profile {
	profile, _ := ctx.Value(profileKey).(*model.Profile)
	return profile
}

// WithSession attaches the signed-in user and their profile. Either may be nil.
func WithSession(ctx context.Context, user *model.User, profile *model.Profile) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, profileKey, profile)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
