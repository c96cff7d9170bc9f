package users

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/cryptox"
	"github.com/google/uuid"
)

// Username and password length rules enforced at registration. Lengths are
// counted in characters, not bytes, so multibyte input is measured the way
// the user typed it.
const (
	MinUsernameLen = 3
	MinPasswordLen = 4
)

// Service exposes the credential operations the session engine needs. The
// stored secret is an argon2id verifier with a per-user salt; the interface
// is plain username/password so callers never see the scheme.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// VerifyCredentials reports whether the username/password pair matches a
// stored record. An unknown username is a plain mismatch, not an error.
func (s *Service) VerifyCredentials(ctx context.Context, username string, password []byte) (bool, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("verify %s: %w", username, err)
	}
	return cryptox.VerifierMatches(user.Verifier, password, user.Salt), nil
}

// Exists reports whether a username is already registered.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("exists %s: %w", username, err)
	}
	return true, nil
}

// Register validates and creates a new account. The originating address is
// recorded with the user record.
func (s *Service) Register(ctx context.Context, username string, password []byte, addr string) (*User, error) {
	if utf8.RuneCountInString(username) < MinUsernameLen {
		return nil, common.ErrUsernameTooShort
	}
	if utf8.RuneCount(password) < MinPasswordLen {
		return nil, common.ErrPasswordTooShort
	}

	salt := cryptox.MakeSalt()
	user := &User{
		ID:       uuid.NewString(),
		Username: username,
		Salt:     salt,
		Verifier: cryptox.DeriveVerifier(password, salt),
		Address:  addr,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", username, err)
	}
	return created, nil
}

// TouchLastAccess records a successful login.
func (s *Service) TouchLastAccess(ctx context.Context, username string) error {
	return s.repo.UpdateLastAccess(ctx, username)
}

// Count returns the number of registered users.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Usernames returns all registered identities.
func (s *Service) Usernames(ctx context.Context) ([]string, error) {
	return s.repo.Usernames(ctx)
}
