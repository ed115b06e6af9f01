package signup

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// ExistenceChecker answers whether an account is registered for email.
type ExistenceChecker interface {
	Exists(ctx context.Context, email string) (bool, error)
}

// UserLookup is an authoritative existence query.
type UserLookup interface {
	UserExists(ctx context.Context, email string) (bool, error)
}

type LookupChecker struct {
	lookup UserLookup
}

func NewLookupChecker(lookup UserLookup) *LookupChecker {
	return &LookupChecker{lookup: lookup}
}

func (c *LookupChecker) Exists(ctx context.Context, email string) (bool, error) {
	return c.lookup.UserExists(ctx, email)
}

// invalidCredentials is the store's reply to a wrong password for a known account.
const invalidCredentials = "invalid login credentials"

// ProbeChecker signs in with a throwaway password and reads the error text.
// It only works while the store keeps that exact wording.
type ProbeChecker struct {
	store CredentialStore
}

func NewProbeChecker(store CredentialStore) *ProbeChecker {
	return &ProbeChecker{store: store}
}

func (c *ProbeChecker) Exists(ctx context.Context, email string) (bool, error) {
	err := c.store.SignIn(ctx, email, "probe-"+uuid.NewString())
	if err == nil {
		return true, nil
	}
	if IsTimeout(err) {
		return false, err
	}
	return strings.Contains(strings.ToLower(err.Error()), invalidCredentials), nil
}
