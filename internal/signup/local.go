package signup

import (
	"context"
	"errors"

	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/service"
)

// LocalStore adapts the in-process AuthService to CredentialStore and UserLookup.
type LocalStore struct {
	auth *service.AuthService
}

func NewLocalStore(auth *service.AuthService) *LocalStore {
	return &LocalStore{auth: auth}
}

func (s *LocalStore) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	user, err := s.auth.SignUp(ctx, service.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		Redirect: req.Redirect,
		Metadata: req.Metadata,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			return "", ErrUserExists
		}
		return "", err
	}
	return user.ID, nil
}

func (s *LocalStore) SignIn(ctx context.Context, email, password string) error {
	_, err := s.auth.SignIn(ctx, email, password)
	return err
}

func (s *LocalStore) ResendVerification(ctx context.Context, email, redirect string) error {
	return s.auth.ResendVerification(ctx, email, redirect)
}

func (s *LocalStore) UserExists(ctx context.Context, email string) (bool, error) {
	return s.auth.UserExists(ctx, email)
}

// NewChecker picks the existence strategy named in config.
func NewChecker(strategy string, store CredentialStore, lookup UserLookup) ExistenceChecker {
	if strategy == config.ExistenceCheckProbe {
		return NewProbeChecker(store)
	}
	return NewLookupChecker(lookup)
}
